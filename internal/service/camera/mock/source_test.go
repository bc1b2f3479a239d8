package mock

import (
	"context"
	"errors"
	"testing"

	"ai-scene-narrator-service/internal/service/camera"
)

func TestSource_DefaultFrame(t *testing.T) {
	s := New()

	frame, err := s.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame == "" {
		t.Error("expected a non-empty frame")
	}
	if s.Captures() != 1 {
		t.Errorf("expected 1 capture, got %d", s.Captures())
	}
}

func TestSource_SetErrorAndFrame(t *testing.T) {
	s := New()
	s.SetError(camera.ErrNoFrame)

	if _, err := s.CaptureFrame(context.Background()); !errors.Is(err, camera.ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}

	s.SetFrame("ZmFrZQ==")
	frame, err := s.CaptureFrame(context.Background())
	if err != nil || frame != "ZmFrZQ==" {
		t.Errorf("expected configured frame, got %q %v", frame, err)
	}
}
