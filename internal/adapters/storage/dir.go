package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepp5/catrack/internal/domain/model"
)

// DirFetcher reads clips from a local directory laid out as
// {root}/{bucket}/{path}.
type DirFetcher struct {
	root     string
	maxBytes int64
}

// NewDirFetcher creates a fetcher rooted at dir.
func NewDirFetcher(dir string, opts ...DirOption) *DirFetcher {
	f := &DirFetcher{root: filepath.Clean(dir), maxBytes: defaultMaxBytes}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Root returns the directory clips are read from.
func (f *DirFetcher) Root() string { return f.root }

// Resolve maps a reference to a file path, refusing anything that would
// escape the root.
func (f *DirFetcher) Resolve(ref model.MediaRef) (string, error) {
	if ref.Path == "" {
		return "", fmt.Errorf("%w: media %s has no storage path", model.ErrRetrieval, ref.ID)
	}
	full := filepath.Join(f.root, filepath.FromSlash(ref.Bucket), filepath.FromSlash(ref.Path))
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes storage root", model.ErrRetrieval, ref.Path)
	}
	return full, nil
}

// Fetch reads the clip from disk.
func (f *DirFetcher) Fetch(ctx context.Context, ref model.MediaRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrRetrieval, err)
	}
	full, err := f.Resolve(ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", model.ErrRetrieval, full, err)
	}
	defer func() { _ = file.Close() }()

	body, err := io.ReadAll(io.LimitReader(file, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrRetrieval, full, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", model.ErrRetrieval, full, f.maxBytes)
	}
	return body, nil
}

// Store writes a clip under the root, creating directories as needed. It is
// used by soundctl when seeding synthetic data.
func (f *DirFetcher) Store(ref model.MediaRef, data []byte) error {
	full, err := f.Resolve(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", full, err)
	}
	return nil
}
