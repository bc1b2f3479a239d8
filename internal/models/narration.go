package models

// SessionEvent describes a session lifecycle transition.
type SessionEvent struct {
	EventType  string `json:"eventType"`
	EventID    string `json:"eventId"`
	SessionID  string `json:"sessionId"`
	Feature    string `json:"feature"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Language   string `json:"language"`
	Timestamp  int64  `json:"timestamp"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// UtteranceEvent describes one piece of text sent to the speech output channel.
type UtteranceEvent struct {
	EventType string  `json:"eventType"`
	EventID   string  `json:"eventId"`
	SessionID string  `json:"sessionId"`
	Feature   string  `json:"feature"`
	Text      string  `json:"text"`
	Language  string  `json:"language"`
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
}

// Event types published to the narration topics.
const (
	EventSessionStarted  = "narration.session.started"
	EventSessionEnded    = "narration.session.ended"
	EventUtteranceSpoken = "narration.utterance.spoken"
)
