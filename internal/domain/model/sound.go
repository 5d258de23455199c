// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Label is the ground-truth or predicted health of a clip.
type Label string

// Known labels.
const (
	LabelGood Label = "good"
	LabelBad  Label = "bad"
)

// ParseLabel accepts "good" or "bad" (case-insensitive).
func ParseLabel(s string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case LabelGood:
		return LabelGood, nil
	case LabelBad:
		return LabelBad, nil
	}
	return "", fmt.Errorf("unknown label %q", s)
}

// Key identifies one machine operating in one mode. Baselines are unique per key.
type Key struct {
	MachineID string
	Mode      string
}

// Validate reports whether both parts of the key are present.
func (k Key) Validate() error {
	if strings.TrimSpace(k.MachineID) == "" {
		return fmt.Errorf("%w: missing machine_id", ErrInvalidKey)
	}
	if strings.TrimSpace(k.Mode) == "" {
		return fmt.Errorf("%w: missing mode", ErrInvalidKey)
	}
	return nil
}

func (k Key) String() string { return k.MachineID + "/" + k.Mode }

// MediaRef points at a stored clip. Bucket and Path locate the raw bytes.
type MediaRef struct {
	ID       string
	Bucket   string
	Path     string
	MimeType string
}

// FormatHint derives a lower-case container name from the path extension,
// falling back to the declared MIME type.
func (m MediaRef) FormatHint() string {
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(m.Path)), "."); ext != "" {
		return ext
	}
	mime := strings.ToLower(strings.TrimSpace(m.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if i := strings.IndexByte(mime, '/'); i >= 0 {
		mime = mime[i+1:]
	}
	switch mime {
	case "x-wav", "wave", "vnd.wave":
		return "wav"
	case "mpeg":
		return "mp3"
	case "mp4", "x-m4a":
		return "m4a"
	case "x-caf":
		return "caf"
	}
	return mime
}

// SoundSample is a labeled catalog entry. The engine only reads these.
type SoundSample struct {
	ID    string
	Media MediaRef
	Key   Key
	Label Label
}

// Fingerprint is the fixed-length clip descriptor: K coefficient means
// followed by K coefficient standard deviations.
type Fingerprint []float64

// Dim returns the fingerprint length (2K).
func (f Fingerprint) Dim() int { return len(f) }

// Clone returns an independent copy.
func (f Fingerprint) Clone() Fingerprint {
	if f == nil {
		return nil
	}
	out := make(Fingerprint, len(f))
	copy(out, f)
	return out
}

// Baseline holds the learned normal-sound statistics for one key.
// A rebuild replaces it wholesale.
type Baseline struct {
	Key         Key
	FeatureMean []float64
	FeatureStd  []float64
	Threshold   float64
	NumGood     int
	NumBad      int
	UpdatedAt   time.Time
}

// Dim returns the statistic vector length.
func (b Baseline) Dim() int { return len(b.FeatureMean) }

// Validate checks the structural invariants of a baseline.
func (b Baseline) Validate() error {
	if err := b.Key.Validate(); err != nil {
		return err
	}
	if len(b.FeatureMean) == 0 {
		return fmt.Errorf("empty feature_mean")
	}
	if len(b.FeatureMean) != len(b.FeatureStd) {
		return fmt.Errorf("%w: feature_mean has %d values, feature_std has %d",
			ErrDimensionMismatch, len(b.FeatureMean), len(b.FeatureStd))
	}
	for i, s := range b.FeatureStd {
		if !(s > 0) {
			return fmt.Errorf("feature_std[%d] must be positive, got %v", i, s)
		}
	}
	if !(b.Threshold >= 0) {
		return fmt.Errorf("threshold must be non-negative, got %v", b.Threshold)
	}
	return nil
}

// Assessment is the append-only record of one scoring call.
type Assessment struct {
	ID             string
	MediaID        string
	Key            Key
	AnomalyScore   float64
	Threshold      float64
	PredictedLabel Label
	CreatedAt      time.Time
}
