package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxSnapshotBytes caps how much of a snapshot response is read.
const maxSnapshotBytes = 20 << 20

// Snapshot fetches frames from an HTTP snapshot endpoint, as exposed by IP
// cameras and phone camera bridges.
type Snapshot struct {
	url    string
	client *http.Client
	opts   EncodeOptions
}

var _ FrameSource = (*Snapshot)(nil)

// NewSnapshot creates a snapshot source with the given request timeout.
func NewSnapshot(url string, timeout time.Duration, opts EncodeOptions) *Snapshot {
	return &Snapshot{
		url:    url,
		client: &http.Client{Timeout: timeout},
		opts:   opts,
	}
}

// CaptureFrame requests one snapshot and encodes it.
func (s *Snapshot) CaptureFrame(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: snapshot returned %s", ErrNoFrame, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read snapshot: %v", ErrNoFrame, err)
	}
	return EncodeBytes(data, s.opts)
}
