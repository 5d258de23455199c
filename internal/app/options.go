package service

import (
	"time"

	"github.com/deepp5/catrack/internal/adapters/repository"
	"github.com/deepp5/catrack/internal/adapters/storage"
	"github.com/deepp5/catrack/internal/domain/baseline"
	"github.com/deepp5/catrack/internal/domain/scoring"
	"github.com/deepp5/catrack/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the catalog, baseline and assessment store. The caller
// keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFetcher sets where raw clip bytes come from.
func WithFetcher(f storage.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithDecoder sets the audio decoder. Its sample rate must match the extractor's.
func WithDecoder(d Decoder) Option {
	return func(s *Service) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithExtractor sets the fingerprint extractor.
func WithExtractor(e Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithScorer sets the anomaly scorer used by ScoreClip.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithBuilder sets the baseline builder used by RebuildBaseline.
func WithBuilder(b *baseline.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithWorkerCount sets the number of extraction workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithClipTimeout bounds fetch, decode and extract for one clip.
func WithClipTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.clipTimeout = d
		}
	}
}

// WithMaxAssessmentLimit caps how many assessments one listing returns.
func WithMaxAssessmentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAssessmentLimit = n
		}
	}
}

// WithClock overrides time.Now for baseline and assessment timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
