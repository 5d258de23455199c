package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("media not found")
	ErrInvalidLimit = errors.New("invalid assessment limit")
	ErrInvalidInput = errors.New("invalid catalog entry")
)
