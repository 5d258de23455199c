// Package storage retrieves the raw bytes of stored clips.
package storage

import (
	"context"

	"github.com/deepp5/catrack/internal/domain/model"
)

// Fetcher returns the encoded bytes behind a media reference. Every failure
// wraps model.ErrRetrieval.
type Fetcher interface {
	Fetch(ctx context.Context, ref model.MediaRef) ([]byte, error)
}
