package service

import "errors"

// Sentinel error kinds for the service.
var (
	// ErrNotStarted is returned by operations called before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrMissingFetcher is returned by Start when no raw-bytes source is configured.
	ErrMissingFetcher = errors.New("no media fetcher configured")
	// ErrInvalidArgument marks a malformed request parameter.
	ErrInvalidArgument = errors.New("invalid argument")
)
