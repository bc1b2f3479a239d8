// Package openaicompat implements the vision backend on any OpenAI-compatible
// chat completions endpoint.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ai-scene-narrator-service/internal/service/vision"
)

// Config holds endpoint configuration.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // empty uses api.openai.com
	MaxRetries int
}

// Backend implements vision.Backend with openai-go.
type Backend struct {
	client *openai.Client
	model  string
}

var _ vision.Backend = (*Backend)(nil)

// New creates an OpenAI-compatible backend.
func New(cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &Backend{client: &client, model: cfg.Model}, nil
}

func (b *Backend) Name() string { return "openai" }

// Stream runs a streaming chat completion and forwards content deltas.
func (b *Backend) Stream(ctx context.Context, req vision.Request, onChunk func(chunk string)) error {
	stream := b.client.Chat.Completions.NewStreaming(ctx, b.params(req))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			onChunk(delta)
		}
	}
	if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("openai %s stream: %w", req.Operation, err)
	}
	return nil
}

// Generate runs a single chat completion.
func (b *Backend) Generate(ctx context.Context, req vision.Request) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, b.params(req))
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", req.Operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *Backend) params(req vision.Request) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{userMessage(req)},
	}
}

// userMessage packs the request into one multi-part user message. Images
// travel as JPEG data URLs.
func userMessage(req vision.Request) openai.ChatCompletionMessageParamUnion {
	contents := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsImage() {
			contents = append(contents, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(p.ImageBase64),
			}))
			continue
		}
		contents = append(contents, openai.TextContentPart(p.Text))
	}
	mp := openai.ChatCompletionUserMessageParam{
		Content: openai.ChatCompletionUserMessageParamContentUnion{
			OfArrayOfContentParts: contents,
		},
	}
	return openai.ChatCompletionMessageParamUnion{OfUser: &mp}
}

func dataURL(b64 string) string {
	if strings.HasPrefix(b64, "data:") {
		return b64
	}
	return "data:image/jpeg;base64," + b64
}
