// Package synth generates deterministic machine-like audio for demos and
// tests: an engine hum for healthy clips, plus a bearing whine and periodic
// knocks for faulty ones.
package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
)

// Profile describes one synthetic machine sound.
type Profile struct {
	Fundamental float64 // hum frequency in Hz
	Harmonics   int
	HumLevel    float64
	NoiseLevel  float64
	WhineHz     float64 // zero disables the whine
	WhineLevel  float64
	KnockRate   float64 // knocks per second, zero disables
	KnockLevel  float64
}

// GoodProfile is a steady diesel-like idle.
func GoodProfile() Profile {
	return Profile{Fundamental: 110, Harmonics: 4, HumLevel: 0.4, NoiseLevel: 0.02}
}

// BadProfile is the idle with a worn-bearing whine and a loose-part knock.
func BadProfile() Profile {
	p := GoodProfile()
	p.WhineHz = 3200
	p.WhineLevel = 0.25
	p.KnockRate = 3
	p.KnockLevel = 0.6
	return p
}

// ProfileFor returns the default profile for a label.
func ProfileFor(label model.Label) Profile {
	if label == model.LabelBad {
		return BadProfile()
	}
	return GoodProfile()
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSampleRate sets the output rate.
func WithSampleRate(rate int) Option {
	return func(g *Generator) {
		if rate > 0 {
			g.sampleRate = rate
		}
	}
}

// WithDuration sets the clip length.
func WithDuration(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.duration = d
		}
	}
}

// Generator renders clips. The same profile and seed always give the same
// samples.
type Generator struct {
	sampleRate int
	duration   time.Duration
}

// NewGenerator creates a generator; defaults are 16 kHz and two seconds.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{sampleRate: 16000, duration: 2 * time.Second}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SampleRate returns the output rate.
func (g *Generator) SampleRate() int { return g.sampleRate }

// Clip renders a clip for label, varied slightly by seed the way two
// recordings of the same machine differ.
func (g *Generator) Clip(label model.Label, seed int64) []float64 {
	return g.Render(ProfileFor(label), seed)
}

// Render renders p with seed-driven jitter on pitch, level and noise.
func (g *Generator) Render(p Profile, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible fixtures
	rate := float64(g.sampleRate)
	n := int(g.duration.Seconds() * rate)

	f0 := p.Fundamental * (1 + (rng.Float64()-0.5)*0.02)
	level := p.HumLevel * (1 + (rng.Float64()-0.5)*0.1)
	phase := rng.Float64() * 2 * math.Pi

	var knockEvery int
	if p.KnockRate > 0 {
		knockEvery = int(rate / p.KnockRate)
	}
	knockLen := int(rate * 0.02)

	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		var s float64
		for h := 1; h <= p.Harmonics; h++ {
			s += level / float64(h) * math.Sin(2*math.Pi*f0*float64(h)*t+phase*float64(h))
		}
		if p.WhineHz > 0 {
			s += p.WhineLevel * math.Sin(2*math.Pi*p.WhineHz*t)
		}
		if knockEvery > 0 {
			if k := i % knockEvery; k < knockLen {
				decay := math.Exp(-float64(k) / (float64(knockLen) / 4))
				s += p.KnockLevel * decay * math.Sin(2*math.Pi*900*t)
			}
		}
		s += p.NoiseLevel * rng.NormFloat64()
		out[i] = math.Max(-1, math.Min(1, s))
	}
	return out
}
