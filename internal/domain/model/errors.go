package model

import "errors"

// Sentinel kinds shared by the sound-health engine. Adapters wrap these so
// callers can use errors.Is regardless of which backend failed.
var (
	// ErrDecode marks malformed, unsupported or empty audio.
	ErrDecode = errors.New("decode error")
	// ErrInsufficientData marks a clip too short for one analysis frame or a
	// rebuild left with fewer than two usable good fingerprints.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrBaselineNotFound marks scoring before any successful rebuild.
	ErrBaselineNotFound = errors.New("baseline not found")
	// ErrRetrieval marks an upstream fetch of raw bytes that failed.
	ErrRetrieval = errors.New("retrieval error")
	// ErrDimensionMismatch marks vectors of different lengths meeting each other.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidKey marks a request without machine_id or mode.
	ErrInvalidKey = errors.New("invalid key")
)
