// Package mock provides an in-memory speaker for development and tests.
// It records every utterance instead of playing audio.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-scene-narrator-service/internal/service/tts"
)

// Utterance is one recorded call to Speak that started playing.
type Utterance struct {
	Text string
	Lang string
	Rate float64
}

// DefaultVoices are the voice tags the mock reports as installed.
var DefaultVoices = []string{"en-US", "en-GB", "hi-IN", "es-ES", "fr-FR", "de-DE", "ja-JP", "zh-CN"}

// Speaker implements tts.Speaker by recording utterances.
// An utterance is recorded when it starts, so an utterance requested on an
// already cancelled context is never recorded.
type Speaker struct {
	mu        sync.Mutex
	delay     time.Duration
	voices    []string
	fail      func(text string) error
	spoken    []Utterance
	cancels   int
	interrupt chan struct{}
	changed   chan struct{}
}

var _ tts.Speaker = (*Speaker)(nil)

// New creates a mock speaker with DefaultVoices and no playback delay.
func New() *Speaker {
	return &Speaker{
		voices:    append([]string(nil), DefaultVoices...),
		interrupt: make(chan struct{}),
		changed:   make(chan struct{}),
	}
}

// SetDelay sets how long each utterance "plays".
func (s *Speaker) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetVoices replaces the installed voice list.
func (s *Speaker) SetVoices(voices ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = voices
}

// SetFailure makes Speak return fn(text) when it is non-nil.
func (s *Speaker) SetFailure(fn func(text string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fn
}

// Speak records the utterance and waits for the configured delay.
func (s *Speaker) Speak(ctx context.Context, text, lang string, rate float64) error {
	if ctx.Err() != nil {
		return nil
	}

	s.mu.Lock()
	if s.fail != nil {
		if err := s.fail(text); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.spoken = append(s.spoken, Utterance{Text: text, Lang: lang, Rate: rate})
	delay := s.delay
	interrupt := s.interrupt
	s.notifyLocked()
	s.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-interrupt:
	}
	return nil
}

// CancelAll interrupts every utterance currently playing.
func (s *Speaker) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	close(s.interrupt)
	s.interrupt = make(chan struct{})
}

// VoiceAvailable matches lang against the installed voice list.
func (s *Speaker) VoiceAvailable(ctx context.Context, lang string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tts.MatchVoice(s.voices, lang), nil
}

// Spoken returns a copy of the recorded utterances.
func (s *Speaker) Spoken() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Utterance(nil), s.spoken...)
}

// Texts returns the recorded utterance texts in order.
func (s *Speaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	for i, u := range s.spoken {
		out[i] = u.Text
	}
	return out
}

// Cancels returns how many times CancelAll was called.
func (s *Speaker) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// Reset clears the recorded utterances.
func (s *Speaker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = nil
}

// WaitFor blocks until text has been spoken or the timeout expires.
func (s *Speaker) WaitFor(text string, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		for _, u := range s.spoken {
			if u.Text == text {
				s.mu.Unlock()
				return true
			}
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}

// WaitForCount blocks until at least n utterances have been recorded.
func (s *Speaker) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		got := len(s.spoken)
		changed := s.changed
		s.mu.Unlock()
		if got >= n {
			return true
		}

		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}

func (s *Speaker) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
