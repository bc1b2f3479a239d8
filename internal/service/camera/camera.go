// Package camera provides the frame sources the narrator captures from.
// Every source returns one JPEG frame, downscaled and base64-encoded, ready
// to be attached to a vision query.
package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrNoFrame is returned when the source has no frame to give.
var ErrNoFrame = errors.New("no camera frame available")

// FrameSource captures single frames from the camera.
type FrameSource interface {
	// CaptureFrame returns a base64-encoded JPEG of the current frame.
	// Failures wrap ErrNoFrame.
	CaptureFrame(ctx context.Context) (string, error)
}

// EncodeOptions controls frame encoding.
type EncodeOptions struct {
	MaxDimension int // longest side in pixels; 0 keeps the original size
	Quality      int // JPEG quality 1-100
}

// DefaultEncodeOptions returns the options used when none are configured.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{MaxDimension: 1024, Quality: 80}
}

// Encode downscales img so its longest side is at most MaxDimension and
// returns it as base64 JPEG.
func Encode(img image.Image, opts EncodeOptions) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrNoFrame
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultEncodeOptions().Quality
	}

	img = downscale(img, opts.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeBytes decodes a JPEG or PNG image and re-encodes it with Encode.
func EncodeBytes(data []byte, opts EncodeOptions) (string, error) {
	if len(data) == 0 {
		return "", ErrNoFrame
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: decode image: %v", ErrNoFrame, err)
	}
	return Encode(img, opts)
}

func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	if w >= h {
		h = max(1, h*maxDim/w)
		w = maxDim
	} else {
		w = max(1, w*maxDim/h)
		h = maxDim
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
