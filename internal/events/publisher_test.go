package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/schema"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerSessions != nil {
				t.Error("expected nil session writer when disabled")
			}
			if p.writerUtterances != nil {
				t.Error("expected nil utterance writer when disabled")
			}
		})
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:         true,
		Brokers:         []string{"localhost:9092"},
		TopicSessions:   "narration.session",
		TopicUtterances: "narration.utterance",
	})
	defer p.Close()

	if !p.enabled {
		t.Fatal("expected publisher enabled")
	}
	if p.writerSessions.Topic != "narration.session" || p.writerUtterances.Topic != "narration.utterance" {
		t.Errorf("unexpected writer topics: %s, %s", p.writerSessions.Topic, p.writerUtterances.Topic)
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:         false,
		Brokers:         []string{"localhost:9092"},
		TopicSessions:   "test.sessions",
		TopicUtterances: "test.utterances",
		Principal:       "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicSessions != "test.sessions" {
		t.Errorf("expected topic 'test.sessions', got %s", p.topicSessions)
	}
	if p.topicUtterances != "test.utterances" {
		t.Errorf("expected topic 'test.utterances', got %s", p.topicUtterances)
	}
}

func TestPublisher_PublishSession_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicSessions: "test.sessions", Principal: "test-svc"})

	event := NewSessionEvent(models.EventSessionStarted, "describe-scene-1", "describe-scene", "RUNNING", "", "en-US", 0)
	if err := p.PublishSession(context.Background(), event); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishUtterance_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicUtterances: "test.utterances"})

	event := NewUtteranceEvent("ask-3", "ask", "The light is green.", "en-US", 1.4)
	if err := p.PublishUtterance(context.Background(), event); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_RejectsInvalidEvents(t *testing.T) {
	p := New(&Config{Enabled: false})

	bad := NewSessionEvent(models.EventSessionEnded, "", "ask", "", "", "en-US", 0)
	if err := p.PublishSession(context.Background(), bad); !errors.Is(err, schema.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}

	blank := NewUtteranceEvent("ask-3", "ask", "  ", "en-US", 1)
	if err := p.PublishUtterance(context.Background(), blank); !errors.Is(err, schema.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent for blank text, got %v", err)
	}
}

func TestPublisher_PublishInvalidJSON(t *testing.T) {
	// Bypass validation to reach the marshal step with an unmarshalable value.
	p := &Publisher{metrics: New(nil).metrics}

	if err := p.publish(context.Background(), nil, "t", "x", "k", make(chan int)); err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestNewSessionEvent(t *testing.T) {
	e := NewSessionEvent(models.EventSessionEnded, "navigation-4", "navigation", "CANCELLED", "stopped", "fr-FR", 1500*time.Millisecond)

	if e.EventID == "" {
		t.Error("expected generated event id")
	}
	if e.DurationMs != 1500 {
		t.Errorf("expected 1500ms, got %d", e.DurationMs)
	}
	if e.Timestamp <= 0 {
		t.Error("expected timestamp")
	}
	other := NewSessionEvent(models.EventSessionEnded, "navigation-4", "navigation", "CANCELLED", "", "fr-FR", 0)
	if other.EventID == e.EventID {
		t.Error("expected unique event ids")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{
		writerSessions:   nil,
		writerUtterances: nil,
	}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
