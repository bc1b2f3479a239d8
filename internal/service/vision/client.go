package vision

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/observability/metrics"
)

// Backend sends prompts to one model provider.
type Backend interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Stream runs req and passes every non-empty text delta to onChunk.
	Stream(ctx context.Context, req Request, onChunk func(chunk string)) error
	// Generate runs req and returns the complete text.
	Generate(ctx context.Context, req Request) (string, error)
}

// Client implements Service on top of a Backend.
type Client struct {
	backend Backend
	logger  zerolog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

var _ Service = (*Client)(nil)

// NewClient wraps backend. A nil m records to metrics.DefaultMetrics.
func NewClient(backend Backend, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Client{
		backend: backend,
		logger:  logging.WithProvider("vision", backend.Name()),
		metrics: m,
	}
}

// WithTimeout bounds every query to d. Zero leaves queries bounded only by
// the caller's context.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

func (c *Client) DescribeScene(ctx context.Context, image string, onChunk func(chunk string)) error {
	return c.stream(ctx, DescribeSceneRequest(image), onChunk)
}

func (c *Client) RecognizeAndDescribePerson(ctx context.Context, image string, people []models.RememberedPerson, onChunk func(chunk string)) error {
	return c.stream(ctx, PersonRequest(image, people), onChunk)
}

func (c *Client) AskAboutImage(ctx context.Context, image, question string, onChunk func(chunk string)) error {
	return c.stream(ctx, AskRequest(image, question), onChunk)
}

func (c *Client) NavigationGuidance(ctx context.Context, image string) (string, error) {
	return c.generate(ctx, NavigationRequest(image))
}

func (c *Client) ContinuousDescription(ctx context.Context, image string, history []string) (string, error) {
	return c.generate(ctx, ContinuousRequest(image, history))
}

func (c *Client) stream(ctx context.Context, req Request, onChunk func(chunk string)) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	start := time.Now()
	chunks := 0
	err := c.backend.Stream(ctx, req, func(chunk string) {
		if chunk == "" {
			return
		}
		chunks++
		onChunk(chunk)
	})
	c.observe(req.Operation, start, err, chunks)
	return err
}

func (c *Client) generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	start := time.Now()
	text, err := c.backend.Generate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	c.observe(req.Operation, start, err, 1)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) observe(op string, start time.Time, err error, chunks int) {
	latency := time.Since(start)
	c.metrics.RecordVisionQuery(c.backend.Name(), op, err, latency.Seconds())

	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("operation", op).
			Dur("latency", latency).
			Msg("Vision query failed")
		return
	}
	c.logger.Debug().
		Str("operation", op).
		Int("chunks", chunks).
		Dur("latency", latency).
		Msg("Vision query completed")
}
