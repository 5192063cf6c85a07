package tile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

const (
	// DefaultTimeout bounds a single tile request
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when the caller's headers carry none
	DefaultUserAgent = "satstitch/1.0"

	// maxTileBytes guards against servers streaming unbounded bodies
	maxTileBytes = 32 << 20
)

// Processor downloads and decodes single tiles
type Processor struct {
	client *http.Client
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) ProcessorOption {
	return func(p *Processor) {
		if c != nil {
			p.client = c
		}
	}
}

// NewProcessor creates a new tile processor
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BuildURL replaces URL template tokens. {x}, {y} and {z} become the
// decimal tile column, row and zoom; {s} rotates through the a/b/c
// subdomains commonly offered by tile servers.
func BuildURL(template string, idx TileIndex, zoom int) string {
	url := strings.ReplaceAll(template, "{x}", strconv.Itoa(idx.X))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(idx.Y))
	url = strings.ReplaceAll(url, "{z}", strconv.Itoa(zoom))
	if strings.Contains(url, "{s}") {
		n := (idx.X + idx.Y) % 3
		if n < 0 {
			n += 3
		}
		url = strings.ReplaceAll(url, "{s}", string(rune('a'+n)))
	}
	return url
}

// Fetch downloads url with the given headers and decodes the body into a
// raster of the requested depth (3 = RGB, anything else RGBA). Any network,
// status or decode problem is returned as an error; there are no retries.
func (p *Processor) Fetch(ctx context.Context, url string, headers map[string]string, channels int) (*Raster, error) {
	data, err := p.Download(ctx, url, headers)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	return FromImage(img, channels), nil
}

// Download performs the GET and returns the raw body of a 2xx response.
func (p *Processor) Download(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
}

// StatusError is returned for non-2xx tile responses
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
