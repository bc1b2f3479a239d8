// Package connectivity feeds platform online/offline notifications into the
// orchestrator.
package connectivity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/observability/logging"
)

// ErrInvalidNotification is returned for payloads without an "online" field.
var ErrInvalidNotification = errors.New("invalid connectivity notification")

// Receiver is told about every connectivity change.
type Receiver interface {
	SetOnline(online bool)
}

// Notification is the wire format published by the platform.
type Notification struct {
	Online *bool `json:"online"`
}

// Parse decodes a notification payload.
func Parse(data []byte) (bool, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	if n.Online == nil {
		return false, fmt.Errorf("%w: missing online field", ErrInvalidNotification)
	}
	return *n.Online, nil
}

// Subscriber listens on a NATS subject for connectivity notifications.
type Subscriber struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger zerolog.Logger
}

// NewSubscriber connects to NATS and subscribes to subject.
func NewSubscriber(url, subject string, receiver Receiver) (*Subscriber, error) {
	logger := logging.WithComponent("connectivity")

	nc, err := nats.Connect(url,
		nats.Name("scene-narrator"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s := &Subscriber{nc: nc, logger: logger}
	s.sub, err = nc.Subscribe(subject, s.handler(receiver))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	logger.Info().Str("subject", subject).Msg("Subscribed to connectivity notifications")
	return s, nil
}

func (s *Subscriber) handler(receiver Receiver) nats.MsgHandler {
	return func(msg *nats.Msg) {
		online, err := Parse(msg.Data)
		if err != nil {
			s.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Ignoring notification")
			return
		}
		receiver.SetOnline(online)
	}
}

// Close unsubscribes and closes the connection.
func (s *Subscriber) Close() error {
	if s == nil || s.nc == nil {
		return nil
	}
	var err error
	if s.sub != nil {
		err = s.sub.Unsubscribe()
	}
	s.nc.Close()
	return err
}
