package service

import (
	"context"
	"fmt"
	"time"

	"github.com/deepp5/catrack/internal/adapters/storage"
	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/metrics"
)

// Decoder turns container bytes into mono PCM at the analysis rate.
type Decoder interface {
	Decode(ctx context.Context, data []byte, hint string) ([]float64, error)
	SampleRate() int
}

// Extractor turns PCM into a fingerprint.
type Extractor interface {
	Extract(pcm []float64) (model.Fingerprint, error)
	SampleRate() int
	Dim() int
}

// Pipeline fetches, decodes and fingerprints one clip. It is the
// worker.Processor shared by rebuilds and ScoreClip.
type Pipeline struct {
	fetcher   storage.Fetcher
	decoder   Decoder
	extractor Extractor
}

// NewPipeline wires the three stages together.
func NewPipeline(f storage.Fetcher, d Decoder, e Extractor) *Pipeline {
	return &Pipeline{fetcher: f, decoder: d, extractor: e}
}

// Process runs every stage for ref. Errors keep their model sentinel so
// callers can classify the failure.
func (p *Pipeline) Process(ctx context.Context, ref model.MediaRef) (model.Fingerprint, error) {
	start := time.Now()
	data, err := p.fetcher.Fetch(ctx, ref)
	metrics.RecordStageLatency("fetch", msSince(start))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	pcm, err := p.decoder.Decode(ctx, data, ref.FormatHint())
	metrics.RecordStageLatency("decode", msSince(start))
	if err != nil {
		return nil, fmt.Errorf("media %s: %w", ref.ID, err)
	}

	start = time.Now()
	fp, err := p.extractor.Extract(pcm)
	metrics.RecordStageLatency("extract", msSince(start))
	if err != nil {
		return nil, fmt.Errorf("media %s: %w", ref.ID, err)
	}
	return fp, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
