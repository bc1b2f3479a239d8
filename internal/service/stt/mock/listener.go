// Package mock provides a scripted speech listener for development and tests.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-scene-narrator-service/internal/service/stt"
)

// Result is one scripted outcome of ListenOnce.
type Result struct {
	Transcript string
	Err        error
}

// DefaultResults cycle when nothing else is scripted.
var DefaultResults = []Result{
	{Transcript: "What is in front of me?"},
	{Transcript: "Is the door open?"},
	{Transcript: "Alice"},
}

// Listener implements stt.Listener with scripted results.
type Listener struct {
	mu      sync.Mutex
	queue   []Result
	delay   time.Duration
	langs   []string
	counter int
}

var _ stt.Listener = (*Listener)(nil)

// New creates a mock listener cycling through DefaultResults.
func New() *Listener {
	return &Listener{}
}

// Push queues results returned by the next calls, ahead of the defaults.
func (l *Listener) Push(results ...Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, results...)
}

// SetDelay simulates the time the user takes to speak.
func (l *Listener) SetDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = d
}

// Languages returns the language of every ListenOnce call.
func (l *Listener) Languages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.langs...)
}

// ListenOnce returns the next scripted result.
func (l *Listener) ListenOnce(ctx context.Context, lang string) (string, error) {
	l.mu.Lock()
	l.langs = append(l.langs, lang)
	var r Result
	if len(l.queue) > 0 {
		r = l.queue[0]
		l.queue = l.queue[1:]
	} else {
		r = DefaultResults[l.counter%len(DefaultResults)]
		l.counter++
	}
	delay := l.delay
	l.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", stt.ErrNoSpeech
		}
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Transcript, nil
}
