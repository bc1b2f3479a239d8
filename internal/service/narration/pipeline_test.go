package narration

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"ai-scene-narrator-service/internal/service/tts/mock"
)

type completion struct {
	count atomic.Int32
	ch    chan struct{}
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{}, 8)}
}

func (c *completion) fire() {
	c.count.Add(1)
	c.ch <- struct{}{}
}

func (c *completion) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("completion did not fire")
	}
}

func newPipeline(ctx context.Context, s *mock.Speaker, c *completion) *Pipeline {
	return New(ctx, s, Options{
		Language:   "en-US",
		Rate:       1.4,
		OnComplete: c.fire,
	})
}

func TestPipeline_StreamedSentences(t *testing.T) {
	s := mock.New()
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	p.AddChunk("The door is open. Someone is")
	p.AddChunk(" approaching.")
	p.Flush()
	c.wait(t)

	want := []string{"The door is open.", "Someone is approaching."}
	if got := s.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}
	for _, u := range s.Spoken() {
		if u.Lang != "en-US" || u.Rate != 1.4 {
			t.Errorf("unexpected voice settings: %+v", u)
		}
	}
	if n := c.count.Load(); n != 1 {
		t.Errorf("expected completion once, got %d", n)
	}
}

func TestPipeline_SpeaksBeforeFlush(t *testing.T) {
	s := mock.New()
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	p.AddChunk("A car is parked ahead. The")
	if !s.WaitFor("A car is parked ahead.", time.Second) {
		t.Fatal("expected first sentence spoken while stream still open")
	}
	if p.Done() {
		t.Error("pipeline must not complete before Flush")
	}

	p.AddChunk(" light is red")
	p.Flush()
	c.wait(t)

	if got := s.Texts(); len(got) != 2 || got[1] != "The light is red" {
		t.Errorf("expected buffered tail spoken on flush, got %q", got)
	}
}

func TestPipeline_FlushEmptyCompletesSynchronously(t *testing.T) {
	s := mock.New()
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	p.AddChunk("   ")
	p.Flush()

	if n := c.count.Load(); n != 1 {
		t.Errorf("expected completion before Flush returned, got %d", n)
	}
	if len(s.Texts()) != 0 {
		t.Errorf("expected nothing spoken, got %q", s.Texts())
	}
}

func TestPipeline_CompletionFiresOnce(t *testing.T) {
	s := mock.New()
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	p.AddChunk("Only one.")
	p.Flush()
	c.wait(t)
	p.Flush()
	p.Flush()

	time.Sleep(20 * time.Millisecond)
	if n := c.count.Load(); n != 1 {
		t.Errorf("expected completion once, got %d", n)
	}
}

func TestPipeline_OrderPreservedWhileSpeaking(t *testing.T) {
	s := mock.New()
	s.SetDelay(10 * time.Millisecond)
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	chunks := []string{"One. Two", ". Three! Fo", "ur? Five"}
	for _, ch := range chunks {
		p.AddChunk(ch)
		time.Sleep(3 * time.Millisecond)
	}
	p.Flush()
	c.wait(t)

	want := []string{"One.", "Two.", "Three!", "Four?", "Five"}
	if got := s.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}
}

func TestPipeline_FailedUtteranceSkipped(t *testing.T) {
	s := mock.New()
	s.SetFailure(func(text string) error {
		if text == "Broken." {
			return errors.New("synthesis failed")
		}
		return nil
	})
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	p.AddChunk("First. Broken. Last.")
	p.Flush()
	c.wait(t)

	want := []string{"First.", "Last."}
	if got := s.Texts(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}
}

func TestPipeline_CancelStopsSpeechAndCompletion(t *testing.T) {
	s := mock.New()
	s.SetDelay(time.Hour)
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	p.AddChunk("First. Second. Third.")
	p.Flush()
	if !s.WaitFor("First.", time.Second) {
		t.Fatal("first sentence never started")
	}

	p.Cancel()
	time.Sleep(30 * time.Millisecond)

	if got := s.Texts(); len(got) != 1 {
		t.Errorf("expected nothing after cancel, got %q", got)
	}
	if s.Cancels() != 1 {
		t.Errorf("expected speaker silenced once, got %d", s.Cancels())
	}
	if n := c.count.Load(); n != 0 {
		t.Errorf("expected no completion after cancel, got %d", n)
	}
	if !p.Cancelled() {
		t.Error("expected Cancelled() true")
	}
}

func TestPipeline_NoOpAfterCancel(t *testing.T) {
	s := mock.New()
	c := newCompletion()
	p := newPipeline(context.Background(), s, c)

	p.Cancel()
	p.Cancel()
	p.AddChunk("Too late. Really.")
	p.Flush()

	time.Sleep(20 * time.Millisecond)
	if len(s.Texts()) != 0 {
		t.Errorf("expected silence, got %q", s.Texts())
	}
	if n := c.count.Load(); n != 0 {
		t.Errorf("expected no completion, got %d", n)
	}
	if s.Cancels() != 1 {
		t.Errorf("expected a single CancelAll, got %d", s.Cancels())
	}
}

func TestPipeline_CancelledContextIsSilent(t *testing.T) {
	s := mock.New()
	c := newCompletion()
	ctx, cancel := context.WithCancel(context.Background())
	p := newPipeline(ctx, s, c)
	cancel()

	p.AddChunk("Stale sentence. Another.")
	p.Flush()

	time.Sleep(20 * time.Millisecond)
	if len(s.Texts()) != 0 {
		t.Errorf("expected stale pipeline to stay silent, got %q", s.Texts())
	}
	if n := c.count.Load(); n != 0 {
		t.Errorf("expected no completion for stale pipeline, got %d", n)
	}
}

func TestPipeline_OnUtterance(t *testing.T) {
	s := mock.New()
	c := newCompletion()
	var heard []string
	p := New(context.Background(), s, Options{
		Language:    "en-US",
		Rate:        1,
		OnComplete:  c.fire,
		OnUtterance: func(text string) { heard = append(heard, text) },
	})

	p.AddChunk("Hello there. General")
	p.Flush()
	c.wait(t)

	want := []string{"Hello there.", "General"}
	if !reflect.DeepEqual(heard, want) {
		t.Errorf("OnUtterance got %q, want %q", heard, want)
	}
}
