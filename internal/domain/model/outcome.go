package model

import "errors"

// Skip reasons reported for samples dropped from a rebuild.
const (
	SkipFetch     = "fetch"
	SkipDecode    = "decode"
	SkipTooShort  = "too_short"
	SkipDuplicate = "duplicate"
	SkipExtract   = "extract"
)

// ErrDuplicateMedia marks a catalog entry whose media already appeared in the same rebuild.
var ErrDuplicateMedia = errors.New("duplicate media reference")

// SampleOutcome is the per-sample result of the fetch/decode/extract step:
// either a fingerprint or the error that caused the sample to be skipped.
type SampleOutcome struct {
	Index       int
	Sample      SoundSample
	Fingerprint Fingerprint
	Err         error
}

// Skipped reports whether the sample is excluded from statistics.
func (o SampleOutcome) Skipped() bool { return o.Err != nil || o.Fingerprint == nil }

// SkipReason classifies why the sample was dropped; empty when usable.
func (o SampleOutcome) SkipReason() string {
	if !o.Skipped() {
		return ""
	}
	switch {
	case errors.Is(o.Err, ErrDuplicateMedia):
		return SkipDuplicate
	case errors.Is(o.Err, ErrRetrieval):
		return SkipFetch
	case errors.Is(o.Err, ErrDecode):
		return SkipDecode
	case errors.Is(o.Err, ErrInsufficientData):
		return SkipTooShort
	}
	return SkipExtract
}

// Partition splits outcomes into good and bad fingerprints plus the skipped
// outcomes, preserving input order.
func Partition(outcomes []SampleOutcome) (good, bad []Fingerprint, skipped []SampleOutcome) {
	for _, o := range outcomes {
		if o.Skipped() {
			skipped = append(skipped, o)
			continue
		}
		switch o.Sample.Label {
		case LabelGood:
			good = append(good, o.Fingerprint)
		case LabelBad:
			bad = append(bad, o.Fingerprint)
		}
	}
	return good, bad, skipped
}
