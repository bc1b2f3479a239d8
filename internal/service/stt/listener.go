// Package stt defines the speech input channel.
package stt

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned when the user said nothing before the listener
// gave up.
var ErrNoSpeech = errors.New("no speech detected")

// Listener captures one spoken utterance and returns its transcript.
type Listener interface {
	// ListenOnce records until the end of one utterance in lang. It returns
	// ErrNoSpeech when nothing was heard; any other error means the speech
	// could not be understood.
	ListenOnce(ctx context.Context, lang string) (string, error)
}
