package audio

import (
	"time"

	"github.com/deepp5/catrack/pkg/logger"
)

const (
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
)

// Option applies a configuration option to the Decoder.
type Option func(*Decoder)

// WithSampleRate sets the output PCM rate.
func WithSampleRate(rate int) Option {
	return func(d *Decoder) {
		if rate > 0 {
			d.sampleRate = rate
		}
	}
}

// WithFFmpeg enables the ffmpeg backend for containers other than WAV.
// An empty path disables it.
func WithFFmpeg(path string) Option {
	return func(d *Decoder) {
		d.ffmpegPath = path
	}
}

// WithTimeout bounds one ffmpeg invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Decoder) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}
