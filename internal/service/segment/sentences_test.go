package segment

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		sentences []string
		rest      string
	}{
		{"empty", "", nil, ""},
		{"no boundary", "Someone is", nil, "Someone is"},
		{"punctuation without whitespace", "The door is open.", nil, "The door is open."},
		{"one sentence and tail", "The door is open. Someone is", []string{"The door is open."}, "Someone is"},
		{"all terminators", "Stop! Who? Fine. ok", []string{"Stop!", "Who?", "Fine."}, "ok"},
		{"trailing whitespace after boundary", "Done.  ", []string{"Done."}, ""},
		{"newlines separate", "One.\n\nTwo.\nthree", []string{"One.", "Two."}, "three"},
		{"leading whitespace trimmed", "   Hello there. x", []string{"Hello there."}, "x"},
		{"ellipsis stays together", "Wait... ok. y", []string{"Wait...", "ok."}, "y"},
		{"decimal number not split", "It costs 3.50 dollars. Then", []string{"It costs 3.50 dollars."}, "Then"},
		{"non-breaking space", "Hi. There", []string{"Hi."}, "There"},
		{"whitespace-only fragment dropped", " . next", []string{"."}, "next"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentences, rest := SplitSentences(tt.in)
			if !reflect.DeepEqual(sentences, tt.sentences) {
				t.Errorf("SplitSentences(%q) sentences = %q, want %q", tt.in, sentences, tt.sentences)
			}
			if rest != tt.rest {
				t.Errorf("SplitSentences(%q) rest = %q, want %q", tt.in, rest, tt.rest)
			}
		})
	}
}

// Feeding text one fragment at a time must yield the same sentences as
// splitting the whole text at once.
func TestSplitSentences_IncrementalMatchesWhole(t *testing.T) {
	text := "A car is parked ahead. The light is red! Is anyone there? Two people wait.  Path is clear"
	fragments := []string{"A car is par", "ked ahead.", " The light", " is red! Is", " anyone there?", " Two people wait.  ", "Path is clear"}
	if strings.Join(fragments, "") != text {
		t.Fatal("fragments do not reassemble the text")
	}

	var got []string
	buf := ""
	for _, f := range fragments {
		var s []string
		s, buf = SplitSentences(buf + f)
		got = append(got, s...)
	}
	if tail := strings.TrimSpace(buf); tail != "" {
		got = append(got, tail)
	}

	want, rest := SplitSentences(text)
	want = append(want, strings.TrimSpace(rest))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("incremental = %q, whole = %q", got, want)
	}
}
