package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/logger"
)

// HTTPFetcher downloads clips from an object store laid out as
// {base}/{bucket}/{path}.
type HTTPFetcher struct {
	base     string
	token    string
	timeout  time.Duration
	maxBytes int64
	client   *http.Client
	log      logger.Logger
}

// NewHTTPFetcher creates a fetcher rooted at baseURL.
func NewHTTPFetcher(baseURL string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		base:     strings.TrimRight(baseURL, "/"),
		timeout:  defaultTimeout,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	if f.log == nil {
		f.log = logger.Get().Named("storage")
	}
	return f
}

// ObjectURL returns the URL a reference resolves to.
func (f *HTTPFetcher) ObjectURL(ref model.MediaRef) string {
	var parts []string
	if ref.Bucket != "" {
		parts = append(parts, url.PathEscape(ref.Bucket))
	}
	for _, seg := range strings.Split(strings.TrimLeft(ref.Path, "/"), "/") {
		if seg != "" {
			parts = append(parts, url.PathEscape(seg))
		}
	}
	return f.base + "/" + strings.Join(parts, "/")
}

// Fetch downloads the clip. Non-2xx responses, timeouts and oversize bodies
// are retrieval errors; nothing is retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref model.MediaRef) ([]byte, error) {
	if ref.Path == "" {
		return nil, fmt.Errorf("%w: media %s has no storage path", model.ErrRetrieval, ref.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := f.ObjectURL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", model.ErrRetrieval, err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", model.ErrRetrieval, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: get %s: status %d", model.ErrRetrieval, target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrRetrieval, target, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", model.ErrRetrieval, target, f.maxBytes)
	}

	f.log.Debug(ctx, "clip fetched",
		logger.String("media_id", ref.ID),
		logger.Int("bytes", len(body)),
		logger.Duration("took", time.Since(start)))
	return body, nil
}
