// Package config defines service configuration and its loading.
//
// Precedence (low to high): defaults from New, the YAML file named by
// CATRACK_CONFIG, then CATRACK_* environment variables.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects "text" or "json" output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file. Empty selects the in-memory store.
	DBPath string `koanf:"db_path"`

	// StorageDir serves clips from {dir}/{bucket}/{path}. It wins over
	// StorageBaseURL when both are set.
	StorageDir string `koanf:"storage_dir"`
	// StorageBaseURL serves clips from {url}/{bucket}/{path}.
	StorageBaseURL string `koanf:"storage_base_url"`
	// StorageToken is sent as a bearer token to StorageBaseURL.
	StorageToken   string `koanf:"storage_token"`
	FetchTimeoutMS int    `koanf:"fetch_timeout_ms"`
	MaxClipBytes   int64  `koanf:"max_clip_bytes"`

	// FFmpegPath enables non-WAV decoding. Empty disables it.
	FFmpegPath      string `koanf:"ffmpeg_path"`
	DecodeTimeoutMS int    `koanf:"decode_timeout_ms"`

	// Analysis parameters. Changing NumCoefficients changes the fingerprint
	// length, so every baseline must be rebuilt afterwards.
	SampleRate      int `koanf:"sample_rate"`
	FrameSize       int `koanf:"frame_size"`
	HopSize         int `koanf:"hop_size"`
	NumCoefficients int `koanf:"num_coefficients"`
	NumMelFilters   int `koanf:"num_mel_filters"`

	// Calibration.
	MarginFactor float64 `koanf:"margin_factor"`
	ScoreScale   float64 `koanf:"score_scale"`
	StdEpsilon   float64 `koanf:"std_epsilon"`

	// WorkerCount sets the number of extraction workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the clip job queue.
	QueueSize     int `koanf:"queue_size"`
	ClipTimeoutMS int `koanf:"clip_timeout_ms"`

	// MaxAssessmentLimit caps GET /sound/assessments?limit.
	MaxAssessmentLimit int `koanf:"max_assessment_limit"`
	// DefaultMode is used when a request omits mode.
	DefaultMode string `koanf:"default_mode"`
}

// New creates a Config holding the defaults. The context is reserved for
// sources that need one.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		DBPath:             "catrack.db",
		StorageDir:         "media",
		FetchTimeoutMS:     15_000,
		MaxClipBytes:       50 << 20,
		FFmpegPath:         "ffmpeg",
		DecodeTimeoutMS:    30_000,
		SampleRate:         16_000,
		FrameSize:          1024,
		HopSize:            512,
		NumCoefficients:    20,
		NumMelFilters:      40,
		MarginFactor:       1.15,
		ScoreScale:         20.0,
		StdEpsilon:         1e-6,
		WorkerCount:        runtime.NumCPU(),
		QueueSize:          1024,
		ClipTimeoutMS:      60_000,
		MaxAssessmentLimit: 100,
		DefaultMode:        "idle",
	}
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration { return ms(c.FetchTimeoutMS) }

// DecodeTimeout returns DecodeTimeoutMS as a duration.
func (c *Config) DecodeTimeout() time.Duration { return ms(c.DecodeTimeoutMS) }

// ClipTimeout returns ClipTimeoutMS as a duration.
func (c *Config) ClipTimeout() time.Duration { return ms(c.ClipTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Validate checks every field that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(msg, args...))
		}
	}

	check(strings.TrimSpace(c.Addr) != "", "addr must not be empty")
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format must be text or json, got %q", c.LogFormat))
	}
	check(c.SampleRate > 0, "sample_rate must be positive, got %d", c.SampleRate)
	check(c.FrameSize > 0, "frame_size must be positive, got %d", c.FrameSize)
	check(c.HopSize > 0, "hop_size must be positive, got %d", c.HopSize)
	check(c.NumCoefficients > 0, "num_coefficients must be positive, got %d", c.NumCoefficients)
	check(c.NumMelFilters >= c.NumCoefficients, "num_mel_filters (%d) must be >= num_coefficients (%d)", c.NumMelFilters, c.NumCoefficients)
	check(c.MarginFactor >= 1, "margin_factor must be >= 1, got %v", c.MarginFactor)
	check(c.ScoreScale > 0, "score_scale must be positive, got %v", c.ScoreScale)
	check(c.StdEpsilon > 0, "std_epsilon must be positive, got %v", c.StdEpsilon)
	check(c.WorkerCount > 0, "worker_count must be positive, got %d", c.WorkerCount)
	check(c.QueueSize > 0, "queue_size must be positive, got %d", c.QueueSize)
	check(c.FetchTimeoutMS > 0, "fetch_timeout_ms must be positive, got %d", c.FetchTimeoutMS)
	check(c.DecodeTimeoutMS > 0, "decode_timeout_ms must be positive, got %d", c.DecodeTimeoutMS)
	check(c.ClipTimeoutMS > 0, "clip_timeout_ms must be positive, got %d", c.ClipTimeoutMS)
	check(c.MaxClipBytes > 0, "max_clip_bytes must be positive, got %d", c.MaxClipBytes)
	check(c.MaxAssessmentLimit > 0, "max_assessment_limit must be positive, got %d", c.MaxAssessmentLimit)
	check(strings.TrimSpace(c.DefaultMode) != "", "default_mode must not be empty")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
