// Package events publishes narration session and utterance events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/observability/metrics"
	"ai-scene-narrator-service/internal/schema"
)

// Publisher publishes narration events to separate Kafka topics.
type Publisher struct {
	writerSessions   *kafka.Writer
	writerUtterances *kafka.Writer
	principal        string
	topicSessions    string
	topicUtterances  string
	enabled          bool
	validator        *schema.Validator
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicSessions   string
	TopicUtterances string
	Principal       string
	Enabled         bool
}

// New creates a new Kafka event publisher with separate topics for session
// lifecycle and utterance events.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled:   false,
			validator: v,
			metrics:   m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicSessions:   cfg.TopicSessions,
			topicUtterances: cfg.TopicUtterances,
			enabled:         false,
			validator:       v,
			metrics:         m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSessions", cfg.TopicSessions).
		Str("topicUtterances", cfg.TopicUtterances).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSessions:   newWriter(cfg.Brokers, cfg.TopicSessions, transport),
		writerUtterances: newWriter(cfg.Brokers, cfg.TopicUtterances, transport),
		principal:        cfg.Principal,
		topicSessions:    cfg.TopicSessions,
		topicUtterances:  cfg.TopicUtterances,
		enabled:          true,
		validator:        v,
		metrics:          m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// NewSessionEvent builds a session event stamped with a fresh event id.
func NewSessionEvent(eventType, sessionID, feature, state, reason, language string, duration time.Duration) models.SessionEvent {
	return models.SessionEvent{
		EventType:  eventType,
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		Feature:    feature,
		State:      state,
		Reason:     reason,
		Language:   language,
		Timestamp:  time.Now().UnixMilli(),
		DurationMs: duration.Milliseconds(),
	}
}

// NewUtteranceEvent builds an utterance event stamped with a fresh event id.
func NewUtteranceEvent(sessionID, feature, text, language string, rate float64) models.UtteranceEvent {
	return models.UtteranceEvent{
		EventType: models.EventUtteranceSpoken,
		EventID:   uuid.NewString(),
		SessionID: sessionID,
		Feature:   feature,
		Text:      text,
		Language:  language,
		Rate:      rate,
		Timestamp: time.Now().UnixMilli(),
	}
}

// PublishSession publishes a session lifecycle event, keyed by session id so
// one session's events stay ordered on a partition.
func (p *Publisher) PublishSession(ctx context.Context, event models.SessionEvent) error {
	return p.publish(ctx, p.writerSessions, p.topicSessions, event.EventType, event.SessionID, event)
}

// PublishUtterance publishes an utterance event.
func (p *Publisher) PublishUtterance(ctx context.Context, event models.UtteranceEvent) error {
	return p.publish(ctx, p.writerUtterances, p.topicUtterances, event.EventType, event.SessionID, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if p.validator != nil {
		if err := p.validator.Validate(event); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Rejected invalid event")
			p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
			return err
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	// Log the event
	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerSessions != nil {
		if e := p.writerSessions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing session writer")
			err = e
		}
	}
	if p.writerUtterances != nil {
		if e := p.writerUtterances.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing utterance writer")
			err = e
		}
	}
	return err
}
