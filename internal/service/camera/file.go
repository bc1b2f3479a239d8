package camera

import (
	"context"
	"fmt"
	"os"
)

// File reads the frame from an image file on disk. A frame grabber that
// keeps overwriting one file (for example ffmpeg with -update 1) makes this
// a live camera.
type File struct {
	path string
	opts EncodeOptions
}

var _ FrameSource = (*File)(nil)

// NewFile creates a file-backed frame source.
func NewFile(path string, opts EncodeOptions) *File {
	return &File{path: path, opts: opts}
}

// CaptureFrame reads and encodes the current file contents.
func (f *File) CaptureFrame(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return EncodeBytes(data, f.opts)
}
