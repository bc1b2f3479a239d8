// Package schema validates event payloads before they leave the service.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"ai-scene-narrator-service/internal/models"
)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the required fields of a known event type. Unknown
// payload types are rejected.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.SessionEvent:
		return v.validateSession(&e)
	case *models.SessionEvent:
		return v.validateSession(e)
	case models.UtteranceEvent:
		return v.validateUtterance(&e)
	case *models.UtteranceEvent:
		return v.validateUtterance(e)
	default:
		return fmt.Errorf("%w: unsupported payload %T", ErrInvalidEvent, event)
	}
}

func (v *Validator) validateSession(e *models.SessionEvent) error {
	if e == nil {
		return fmt.Errorf("%w: nil session event", ErrInvalidEvent)
	}
	if e.EventType != models.EventSessionStarted && e.EventType != models.EventSessionEnded {
		return fmt.Errorf("%w: unexpected session event type %q", ErrInvalidEvent, e.EventType)
	}
	if err := requireCommon(e.EventID, e.SessionID, e.Feature, e.Timestamp); err != nil {
		return err
	}
	if e.EventType == models.EventSessionEnded && e.State == "" {
		return fmt.Errorf("%w: ended session without state", ErrInvalidEvent)
	}
	return nil
}

func (v *Validator) validateUtterance(e *models.UtteranceEvent) error {
	if e == nil {
		return fmt.Errorf("%w: nil utterance event", ErrInvalidEvent)
	}
	if e.EventType != models.EventUtteranceSpoken {
		return fmt.Errorf("%w: unexpected utterance event type %q", ErrInvalidEvent, e.EventType)
	}
	if err := requireCommon(e.EventID, e.SessionID, e.Feature, e.Timestamp); err != nil {
		return err
	}
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("%w: empty utterance text", ErrInvalidEvent)
	}
	return nil
}

func requireCommon(eventID, sessionID, feature string, ts int64) error {
	switch {
	case eventID == "":
		return fmt.Errorf("%w: missing eventId", ErrInvalidEvent)
	case sessionID == "":
		return fmt.Errorf("%w: missing sessionId", ErrInvalidEvent)
	case ts <= 0:
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	if feature == models.ContinuousLoop {
		return nil
	}
	if _, err := models.ParseFeature(feature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}
