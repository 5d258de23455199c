package storage

import (
	"net/http"
	"time"

	"github.com/deepp5/catrack/pkg/logger"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 50 << 20
)

// HTTPOption applies a configuration option to the HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.token = token
	}
}

// WithTimeout bounds one fetch end to end.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l logger.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// DirOption applies a configuration option to the DirFetcher.
type DirOption func(*DirFetcher)

// WithDirMaxBytes caps the accepted file size.
func WithDirMaxBytes(n int64) DirOption {
	return func(f *DirFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}
