package metadata

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	// Decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	defaultProbeTimeout  = 5 * time.Second
	defaultProbeMaxBytes = 1 << 20
)

// ImageProber reports the pixel dimensions of the image at url.
type ImageProber interface {
	Probe(ctx context.Context, url string) (width, height int, err error)
}

// ProberFunc adapts a function to ImageProber.
type ProberFunc func(ctx context.Context, url string) (int, int, error)

// Probe implements ImageProber.
func (f ProberFunc) Probe(ctx context.Context, url string) (int, int, error) {
	return f(ctx, url)
}

// HTTPProber fetches images over HTTP and decodes only their header.
type HTTPProber struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPProber builds a prober. A nil client gets a five second timeout and a
// non-positive maxBytes reads at most 1 MiB.
func NewHTTPProber(client *http.Client, maxBytes int64) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = defaultProbeMaxBytes
	}
	return &HTTPProber{client: client, maxBytes: maxBytes}
}

// Probe implements ImageProber.
func (p *HTTPProber) Probe(ctx context.Context, url string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("probe %s: %w", url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("probe %s: unexpected status %d", url, resp.StatusCode)
	}
	cfg, _, err := image.DecodeConfig(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("probe %s: %w", url, err)
	}
	return cfg.Width, cfg.Height, nil
}
