// Package mock provides a synthetic frame source for development and tests.
package mock

import (
	"context"
	"image"
	"image/color"
	"sync"

	"ai-scene-narrator-service/internal/service/camera"
)

// Source implements camera.FrameSource with a generated test pattern.
type Source struct {
	mu       sync.Mutex
	frame    string
	err      error
	captures int
}

var _ camera.FrameSource = (*Source)(nil)

// New creates a source returning a small gradient frame.
func New() *Source {
	frame, err := camera.Encode(testPattern(64, 48), camera.DefaultEncodeOptions())
	return &Source{frame: frame, err: err}
}

// SetFrame makes every capture return frame.
func (s *Source) SetFrame(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.err = nil
}

// SetError makes every capture fail with err.
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// CaptureFrame returns the configured frame or error.
func (s *Source) CaptureFrame(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	if s.err != nil {
		return "", s.err
	}
	return s.frame, nil
}

// Captures returns how many frames were requested.
func (s *Source) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

func testPattern(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}
