// Package audio decodes stored clips into mono float PCM at a fixed rate.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/logger"
)

// Decoder converts encoded audio bytes into mono PCM in [-1, 1]. WAV is
// parsed in-process; every other container goes through ffmpeg when a path
// is configured.
type Decoder struct {
	sampleRate int
	ffmpegPath string
	timeout    time.Duration
	log        logger.Logger
}

// NewDecoder creates a new decoder with configuration options.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		sampleRate: defaultSampleRate,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Get().Named("decoder")
	}
	return d
}

// SampleRate returns the output rate.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Decode returns mono samples at the decoder's rate. hint is a lower-case
// container name such as "wav" or "m4a" and may be empty, in which case the
// content is sniffed.
func (d *Decoder) Decode(ctx context.Context, data []byte, hint string) ([]float64, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", model.ErrDecode)
	}

	hint = strings.ToLower(strings.TrimPrefix(hint, "."))
	if isRIFFWave(data) {
		pcm, rate, err := decodeWAV(data)
		if err == nil {
			return d.finish(pcm, rate)
		}
		if d.ffmpegPath == "" {
			return nil, err
		}
		d.log.Debug(ctx, "wav parser rejected input, trying ffmpeg", logger.Error(err))
	} else if hint == "wav" && d.ffmpegPath == "" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", model.ErrDecode)
	}

	if d.ffmpegPath == "" {
		return nil, fmt.Errorf("%w: unsupported format %q", model.ErrDecode, hint)
	}
	pcm, err := d.decodeFFmpeg(ctx, data, hint)
	if err != nil {
		return nil, err
	}
	return d.finish(pcm, d.sampleRate)
}

func (d *Decoder) finish(pcm []float64, rate int) ([]float64, error) {
	if rate != d.sampleRate {
		pcm = Resample(pcm, rate, d.sampleRate)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: no samples decoded", model.ErrDecode)
	}
	return pcm, nil
}

func isRIFFWave(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}
