package features

import "errors"

// ErrInvalidParams reports an analysis configuration that cannot produce
// a filter bank (non-positive sizes, more coefficients than mel bands, or a
// frequency range outside Nyquist).
var ErrInvalidParams = errors.New("invalid feature extraction parameters")
