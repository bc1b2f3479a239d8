// Package segment splits streamed model text into speakable sentences.
package segment

import (
	"regexp"
	"strings"
)

// boundary matches sentence-ending punctuation followed by whitespace. The
// punctuation belongs to the preceding sentence; the whitespace run is the
// separator.
var boundary = regexp.MustCompile(`[.?!][\s\p{Zs}]+`)

// SplitSentences splits buf at every sentence boundary. Complete sentences
// are returned trimmed, with empty ones dropped. rest is the unterminated
// trailing text (possibly empty) that must wait for more input.
func SplitSentences(buf string) (sentences []string, rest string) {
	start := 0
	for _, loc := range boundary.FindAllStringIndex(buf, -1) {
		if s := strings.TrimSpace(buf[start : loc[0]+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	return sentences, buf[start:]
}
