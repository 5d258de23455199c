package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/metrics"
)

// MemoryStore is an in-process Store. Values are copied on the way in and
// out so callers never share slices with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	media       map[string]model.MediaRef
	samples     map[model.Key][]model.SoundSample
	baselines   map[model.Key]model.Baseline
	assessments map[model.Key][]model.Assessment
	opts        options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		media:       make(map[string]model.MediaRef),
		samples:     make(map[model.Key][]model.SoundSample),
		baselines:   make(map[model.Key]model.Baseline),
		assessments: make(map[model.Key][]model.Assessment),
		opts:        newOptions(opts),
	}
}

func (s *MemoryStore) AddMedia(_ context.Context, ref model.MediaRef) error {
	if err := checkMedia(ref); err != nil {
		return err
	}
	s.mu.Lock()
	s.media[ref.ID] = ref
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AddSample(_ context.Context, sample model.SoundSample) (model.SoundSample, error) {
	sample, err := prepareSample(sample)
	if err != nil {
		return sample, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.media[sample.Media.ID]; !ok {
		s.media[sample.Media.ID] = sample.Media
	}
	s.samples[sample.Key] = append(s.samples[sample.Key], sample)
	return sample, nil
}

func (s *MemoryStore) ListSamples(_ context.Context, key model.Key) ([]model.SoundSample, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.samples[key]
	out := make([]model.SoundSample, len(src))
	for i, sample := range src {
		// pick up media rows registered or updated after the sample
		if ref, ok := s.media[sample.Media.ID]; ok {
			sample.Media = ref
		}
		out[i] = sample
	}
	return out, nil
}

func (s *MemoryStore) ResolveMedia(_ context.Context, mediaID string) (model.MediaRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.media[mediaID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.MediaRef{}, fmt.Errorf("%w: %s", ErrNotFound, mediaID)
	}
	return ref, nil
}

func (s *MemoryStore) GetBaseline(_ context.Context, key model.Key) (model.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.baselines[key]
	if !ok {
		return model.Baseline{}, fmt.Errorf("%w: %s", model.ErrBaselineNotFound, key)
	}
	return copyBaseline(b), nil
}

func (s *MemoryStore) UpsertBaseline(_ context.Context, b model.Baseline) error {
	if err := b.Validate(); err != nil {
		return err
	}
	start := time.Now()
	b = copyBaseline(b)
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = s.opts.now().UTC()
	}

	s.mu.Lock()
	s.baselines[b.Key] = b
	total := len(s.baselines)
	s.mu.Unlock()

	metrics.RecordRepositoryUpdateLatency(msSince(start))
	metrics.UpdateBaselinesTotal(total)
	return nil
}

func (s *MemoryStore) CountBaselines(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.baselines), nil
}

func (s *MemoryStore) AppendAssessment(_ context.Context, a model.Assessment) error {
	if err := a.Key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.opts.now().UTC()
	}
	s.mu.Lock()
	s.assessments[a.Key] = append(s.assessments[a.Key], a)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListAssessments(_ context.Context, key model.Key, limit int) ([]model.Assessment, error) {
	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.assessments[key]
	n := min(limit, len(src))
	out := make([]model.Assessment, 0, n)
	for i := len(src) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func copyBaseline(b model.Baseline) model.Baseline {
	b.FeatureMean = append([]float64(nil), b.FeatureMean...)
	b.FeatureStd = append([]float64(nil), b.FeatureStd...)
	return b
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
