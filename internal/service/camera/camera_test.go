package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func decodeFrame(t *testing.T, frame string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		t.Fatalf("frame is not base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("frame is not a jpeg: %v", err)
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestEncode_Downscale(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"landscape", 2000, 1000, 1024, 1024, 512},
		{"portrait", 600, 1200, 300, 150, 300},
		{"already small", 320, 240, 1024, 320, 240},
		{"no limit", 1500, 900, 0, 1500, 900},
		{"thin strip", 4000, 2, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(solid(tt.w, tt.h), EncodeOptions{MaxDimension: tt.maxDim, Quality: 70})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			b := decodeFrame(t, frame).Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, b.Dx(), b.Dy())
			}
		})
	}
}

func TestEncode_EmptyImage(t *testing.T) {
	if _, err := Encode(image.NewRGBA(image.Rect(0, 0, 0, 0)), DefaultEncodeOptions()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
	if _, err := Encode(nil, DefaultEncodeOptions()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame for nil, got %v", err)
	}
}

func TestEncodeBytes(t *testing.T) {
	frame, err := EncodeBytes(pngBytes(t, solid(40, 30)), DefaultEncodeOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := decodeFrame(t, frame).Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("expected 40x30, got %v", b)
	}

	if _, err := EncodeBytes([]byte("not an image"), DefaultEncodeOptions()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame for garbage, got %v", err)
	}
	if _, err := EncodeBytes(nil, DefaultEncodeOptions()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame for empty input, got %v", err)
	}
}

func TestFile_CaptureFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(path, pngBytes(t, solid(16, 16)), 0o600); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	src := NewFile(path, DefaultEncodeOptions())
	frame, err := src.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decodeFrame(t, frame)
}

func TestFile_Missing(t *testing.T) {
	src := NewFile(filepath.Join(t.TempDir(), "missing.jpg"), DefaultEncodeOptions())
	if _, err := src.CaptureFrame(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}
}

func TestSnapshot_CaptureFrame(t *testing.T) {
	body := pngBytes(t, solid(64, 32))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	src := NewSnapshot(srv.URL, time.Second, EncodeOptions{MaxDimension: 32, Quality: 80})
	frame, err := src.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := decodeFrame(t, frame).Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("expected 32x16, got %v", b)
	}
}

func TestSnapshot_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "camera busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewSnapshot(srv.URL, time.Second, DefaultEncodeOptions())
	if _, err := src.CaptureFrame(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame for 503, got %v", err)
	}

	unreachable := NewSnapshot("http://127.0.0.1:1/snapshot.jpg", 200*time.Millisecond, DefaultEncodeOptions())
	if _, err := unreachable.CaptureFrame(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame for unreachable camera, got %v", err)
	}
}
