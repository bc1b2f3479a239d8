// Package gemini implements the vision backend on the Gemini API.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ai-scene-narrator-service/internal/service/vision"
)

const imageMIMEType = "image/jpeg"

// Config holds Gemini configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional proxy endpoint
}

// Backend implements vision.Backend with the genai SDK.
type Backend struct {
	client *genai.Client
	model  string
}

var _ vision.Backend = (*Backend)(nil)

// New creates a Gemini backend.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Backend{client: client, model: cfg.Model}, nil
}

func (b *Backend) Name() string { return "gemini" }

// Stream runs a streaming generation and forwards each response's text.
func (b *Backend) Stream(ctx context.Context, req vision.Request, onChunk func(chunk string)) error {
	contents, err := buildContents(req)
	if err != nil {
		return err
	}
	for resp, err := range b.client.Models.GenerateContentStream(ctx, b.model, contents, nil) {
		if err != nil {
			return fmt.Errorf("gemini %s stream: %w", req.Operation, err)
		}
		if text := responseText(resp); text != "" {
			onChunk(text)
		}
	}
	return nil
}

// Generate runs a single generation.
func (b *Backend) Generate(ctx context.Context, req vision.Request) (string, error) {
	contents, err := buildContents(req)
	if err != nil {
		return "", err
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", req.Operation, err)
	}
	return responseText(resp), nil
}

func buildContents(req vision.Request) ([]*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if !p.IsImage() {
			parts = append(parts, genai.NewPartFromText(p.Text))
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("gemini: decode image: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, imageMIMEType))
	}
	return []*genai.Content{{Parts: parts, Role: "user"}}, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
