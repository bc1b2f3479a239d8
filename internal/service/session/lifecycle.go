package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the lifecycle state of a feature session.
type State int

const (
	// StateRunning - Session is live and may speak.
	StateRunning State = iota
	// StateCompleted - Session finished naturally (pipeline drained, enrollment saved).
	StateCompleted
	// StateFailed - Session ended on a collaborator error.
	StateFailed
	// StateCancelled - Session was superseded, stopped or lost connectivity.
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for every state other than RUNNING.
func (s State) IsTerminal() bool {
	return s != StateRunning
}

// ErrInvalidTransition is returned when a terminal session is asked to end again.
var ErrInvalidTransition = errors.New("session already ended")

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	RUNNING ─┬─ Complete() ──→ COMPLETED
//	         ├─ Fail()     ──→ FAILED
//	         └─ Cancel()   ──→ CANCELLED
//
// Terminal states are sticky: the first transition wins and later ones
// return ErrInvalidTransition.
type Lifecycle struct {
	mu        sync.RWMutex
	sessionId string
	state     State
	started   time.Time
	ended     time.Time
	reason    string
}

// NewLifecycle creates a new session lifecycle in RUNNING state.
func NewLifecycle(sessionId string) *Lifecycle {
	return &Lifecycle{
		sessionId: sessionId,
		state:     StateRunning,
		started:   time.Now(),
	}
}

// SessionId returns the session ID.
func (l *Lifecycle) SessionId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Reason returns the reason recorded with the terminal transition.
func (l *Lifecycle) Reason() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reason
}

// Duration returns how long the session ran, or has run so far.
func (l *Lifecycle) Duration() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.ended.IsZero() {
		return time.Since(l.started)
	}
	return l.ended.Sub(l.started)
}

// Complete transitions to COMPLETED.
func (l *Lifecycle) Complete() error {
	return l.end(StateCompleted, "")
}

// Fail transitions to FAILED, recording the reason.
func (l *Lifecycle) Fail(reason string) error {
	return l.end(StateFailed, reason)
}

// Cancel transitions to CANCELLED, recording the reason.
func (l *Lifecycle) Cancel(reason string) error {
	return l.end(StateCancelled, reason)
}

func (l *Lifecycle) end(to State, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return ErrInvalidTransition
	}
	l.state = to
	l.reason = reason
	l.ended = time.Now()
	return nil
}
