// Package vision queries a multimodal model about camera frames.
package vision

import (
	"context"
	"errors"
	"strings"

	"ai-scene-narrator-service/internal/models"
)

// Silent is the sentinel a continuous description returns when nothing
// significant changed.
const Silent = "[SILENT]"

// ErrEmptyResponse is returned when a single-shot query yields no text.
var ErrEmptyResponse = errors.New("vision model returned no text")

// Service answers questions about base64 JPEG frames. Streaming operations
// deliver text through onChunk as it arrives and return once the stream
// ends; single-shot operations return the whole answer.
type Service interface {
	DescribeScene(ctx context.Context, image string, onChunk func(chunk string)) error
	RecognizeAndDescribePerson(ctx context.Context, image string, people []models.RememberedPerson, onChunk func(chunk string)) error
	AskAboutImage(ctx context.Context, image, question string, onChunk func(chunk string)) error
	NavigationGuidance(ctx context.Context, image string) (string, error)
	ContinuousDescription(ctx context.Context, image string, history []string) (string, error)
}

// IsSilent reports whether a continuous description means "no change".
func IsSilent(text string) bool {
	return strings.TrimSpace(text) == Silent
}
