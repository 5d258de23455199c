// Package service implements the sound-health engine behind the HTTP API
// and the operator CLI: baseline rebuilds, clip scoring and their queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/deepp5/catrack/internal/adapters/audio"
	"github.com/deepp5/catrack/internal/adapters/mq/queue"
	"github.com/deepp5/catrack/internal/adapters/mq/worker"
	"github.com/deepp5/catrack/internal/adapters/repository"
	"github.com/deepp5/catrack/internal/adapters/storage"
	"github.com/deepp5/catrack/internal/domain/baseline"
	"github.com/deepp5/catrack/internal/domain/dedupe"
	"github.com/deepp5/catrack/internal/domain/features"
	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/internal/domain/scoring"
	"github.com/deepp5/catrack/internal/domain/types"
	"github.com/deepp5/catrack/pkg/logger"
	"github.com/deepp5/catrack/pkg/metrics"
)

const (
	defaultQueueSize          = 1024
	defaultClipTimeout        = 60 * time.Second
	defaultMaxAssessmentLimit = 100
)

// Service runs rebuilds and scoring against the configured ports.
type Service struct {
	mu sync.RWMutex

	// Ports
	store   repository.Store
	fetcher storage.Fetcher

	// Engine
	decoder   Decoder
	extractor Extractor
	scorer    scoring.Scorer
	builder   *baseline.Builder
	pipeline  *Pipeline

	// Extraction fan-out. The pool runs on poolCtx, which only Stop cancels.
	jobs       *queue.InMemoryQueue
	pool       *worker.Pool
	poolCancel context.CancelFunc

	// Configuration
	workerCount        int
	queueSize          int
	clipTimeout        time.Duration
	maxAssessmentLimit int
	now                func() time.Time

	// State
	started   bool
	ownsStore bool
	stopCh    chan struct{}

	rebuilds        atomic.Int64
	rebuildFailures atomic.Int64
	clipsScored     atomic.Int64

	logger logger.Logger
}

// New constructs a Service. Components left unset get defaults in Start,
// except the fetcher, which must be provided.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:        runtime.NumCPU(),
		queueSize:          defaultQueueSize,
		clipTimeout:        defaultClipTimeout,
		maxAssessmentLimit: defaultMaxAssessmentLimit,
		now:                time.Now,
		stopCh:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fills in default components, checks that they agree with each
// other and launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("sound-service")
	}
	if s.fetcher == nil {
		return ErrMissingFetcher
	}

	if s.extractor == nil {
		ex, err := features.NewExtractor()
		if err != nil {
			return fmt.Errorf("default extractor: %w", err)
		}
		s.extractor = ex
	}
	if s.decoder == nil {
		s.decoder = audio.NewDecoder(audio.WithSampleRate(s.extractor.SampleRate()))
	}
	if s.decoder.SampleRate() != s.extractor.SampleRate() {
		return fmt.Errorf("decoder emits %d Hz but extractor expects %d Hz",
			s.decoder.SampleRate(), s.extractor.SampleRate())
	}
	if s.scorer == nil {
		s.scorer = scoring.NewZScoreScorer()
	}
	if s.builder == nil {
		s.builder = baseline.NewBuilder(baseline.WithScorer(s.scorer))
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.ownsStore = true
		s.logger.Warn(ctx, "no store configured, baselines will not survive a restart")
	}

	s.pipeline = NewPipeline(s.fetcher, s.decoder, s.extractor)
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, s.pipeline,
		worker.WithClipTimeout(s.clipTimeout),
		worker.WithLogger(s.logger.Named("worker")),
	)
	// Detached from ctx so a cancelled caller context does not strand
	// queued jobs while the service still accepts requests.
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.poolCancel = cancel
	s.pool.Start(poolCtx)

	if n, err := s.store.CountBaselines(ctx); err == nil {
		metrics.UpdateBaselinesTotal(n)
	}

	s.stopCh = make(chan struct{})
	s.started = true
	s.logger.Info(ctx, "sound service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dim", s.extractor.Dim()),
		logger.Int("sampleRate", s.extractor.SampleRate()),
	)
	return nil
}

// Stop drains the worker pool. In-flight rebuilds fail with queue.ErrClosed.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping sound service...")

	close(s.stopCh)
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if s.poolCancel != nil {
		s.poolCancel()
		s.poolCancel = nil
	}
	if s.ownsStore && s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "sound service stopped")
}

// ready returns the components a request needs, or ErrNotStarted.
func (s *Service) ready() (stopCh chan struct{}, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.stopCh, nil
}

// RebuildBaseline recomputes the baseline for key from every labelled
// sample in the catalog. Unusable samples are skipped and counted. When
// fewer than two good fingerprints survive, the stored baseline is left
// untouched and an error wrapping model.ErrInsufficientData is returned.
func (s *Service) RebuildBaseline(ctx context.Context, key model.Key) (types.RebuildResult, error) {
	stopCh, err := s.ready()
	if err != nil {
		return types.RebuildResult{}, err
	}
	if err := key.Validate(); err != nil {
		return types.RebuildResult{}, err
	}

	start := time.Now()
	res, err := s.rebuild(ctx, stopCh, key)
	metrics.RecordRebuild(rebuildOutcome(err), msSince(start))
	if err != nil {
		s.rebuildFailures.Add(1)
		s.logger.Warn(ctx, "baseline rebuild failed",
			logger.String("key", key.String()),
			logger.Error(err))
		return types.RebuildResult{}, err
	}
	s.rebuilds.Add(1)
	s.logger.Info(ctx, "baseline rebuilt",
		logger.String("key", key.String()),
		logger.Int("good", res.NumGood),
		logger.Int("bad", res.NumBad),
		logger.Int("skipped", res.NumSkip),
		logger.Float64("threshold", res.Threshold),
		logger.Bool("separated", res.Separated),
		logger.Duration("took", time.Since(start)))
	return res, nil
}

func (s *Service) rebuild(ctx context.Context, stopCh <-chan struct{}, key model.Key) (types.RebuildResult, error) {
	samples, err := s.store.ListSamples(ctx, key)
	if err != nil {
		return types.RebuildResult{}, fmt.Errorf("list samples for %s: %w", key, err)
	}
	if len(samples) == 0 {
		return types.RebuildResult{}, fmt.Errorf("%w: no labelled samples for %s", model.ErrInsufficientData, key)
	}

	outcomes, err := s.extractAll(ctx, stopCh, samples)
	if err != nil {
		return types.RebuildResult{}, err
	}

	good, bad, skipped := model.Partition(outcomes)
	for _, o := range skipped {
		metrics.RecordSampleSkipped(o.SkipReason())
		s.logger.Debug(ctx, "sample skipped",
			logger.String("sample_id", o.Sample.ID),
			logger.String("media_id", o.Sample.Media.ID),
			logger.String("reason", o.SkipReason()),
			logger.Error(o.Err))
	}
	for range good {
		metrics.RecordSampleProcessed(string(model.LabelGood))
	}
	for range bad {
		metrics.RecordSampleProcessed(string(model.LabelBad))
	}

	built, err := s.builder.Build(good, bad)
	if err != nil {
		return types.RebuildResult{}, fmt.Errorf("rebuild %s from %d samples (%d skipped): %w",
			key, len(samples), len(skipped), err)
	}

	b := model.Baseline{
		Key:         key,
		FeatureMean: built.FeatureMean,
		FeatureStd:  built.FeatureStd,
		Threshold:   built.Threshold,
		NumGood:     built.NumGood,
		NumBad:      built.NumBad,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.store.UpsertBaseline(ctx, b); err != nil {
		return types.RebuildResult{}, fmt.Errorf("store baseline for %s: %w", key, err)
	}
	if n, err := s.store.CountBaselines(ctx); err == nil {
		metrics.UpdateBaselinesTotal(n)
	}

	return types.RebuildResult{
		MachineID: key.MachineID,
		Mode:      key.Mode,
		NumGood:   built.NumGood,
		NumBad:    built.NumBad,
		NumSkip:   len(skipped),
		MaxGood:   built.MaxGood,
		MinBad:    built.MinBad,
		Threshold: built.Threshold,
		Separated: built.Separated,
	}, nil
}

// extractAll fans samples out to the worker pool and returns one outcome per
// sample in catalog order, so statistics do not depend on completion order.
// Repeated media references become duplicate outcomes without any work.
func (s *Service) extractAll(ctx context.Context, stopCh <-chan struct{}, samples []model.SoundSample) ([]model.SampleOutcome, error) {
	seen := dedupe.NewInMemoryDeduper()
	outcomes := make([]model.SampleOutcome, len(samples))
	// Buffered for every sample so workers never block on a rebuild that
	// already gave up.
	reply := make(chan model.SampleOutcome, len(samples))

	pending := 0
	for i, sample := range samples {
		if seen.SeenAndRecord(ctx, sample.Media.ID) {
			outcomes[i] = model.SampleOutcome{
				Index:  i,
				Sample: sample,
				Err:    fmt.Errorf("%w: %s", model.ErrDuplicateMedia, sample.Media.ID),
			}
			continue
		}
		job := queue.Job{ID: uuid.NewString(), Index: i, Sample: sample, Reply: reply}
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue sample %s: %w", sample.ID, err)
		}
		pending++
	}

	for pending > 0 {
		select {
		case o := <-reply:
			outcomes[o.Index] = o
			pending--
		case <-ctx.Done():
			return nil, fmt.Errorf("rebuild interrupted with %d clips pending: %w", pending, ctx.Err())
		case <-stopCh:
			return nil, queue.ErrClosed
		}
	}
	return outcomes, nil
}

// ScoreClip fingerprints one stored clip, scores it against the baseline
// for key and records the assessment.
func (s *Service) ScoreClip(ctx context.Context, mediaID string, key model.Key) (types.CheckResult, error) {
	if _, err := s.ready(); err != nil {
		return types.CheckResult{}, err
	}
	if err := key.Validate(); err != nil {
		return types.CheckResult{}, err
	}
	if mediaID == "" {
		return types.CheckResult{}, fmt.Errorf("%w: missing media_id", ErrInvalidArgument)
	}

	b, err := s.store.GetBaseline(ctx, key)
	if err != nil {
		return types.CheckResult{}, err
	}

	ref, err := s.store.ResolveMedia(ctx, mediaID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.CheckResult{}, fmt.Errorf("%w: %w", model.ErrRetrieval, err)
	}
	if err != nil {
		return types.CheckResult{}, fmt.Errorf("resolve media %s: %w", mediaID, err)
	}

	clipCtx, cancel := context.WithTimeout(ctx, s.clipTimeout)
	defer cancel()
	fp, err := s.pipeline.Process(clipCtx, ref)
	if err != nil {
		return types.CheckResult{}, err
	}

	score, err := s.scorer.Score(fp, b.FeatureMean, b.FeatureStd)
	if err != nil {
		return types.CheckResult{}, fmt.Errorf("baseline %s has %d dimensions, clip has %d: %w",
			key, b.Dim(), fp.Dim(), err)
	}
	label := scoring.Classify(score, b.Threshold)

	a := model.Assessment{
		ID:             uuid.NewString(),
		MediaID:        mediaID,
		Key:            key,
		AnomalyScore:   score,
		Threshold:      b.Threshold,
		PredictedLabel: label,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.AppendAssessment(ctx, a); err != nil {
		return types.CheckResult{}, fmt.Errorf("record assessment: %w", err)
	}
	s.clipsScored.Add(1)
	metrics.RecordClipScored(string(label), score)
	s.logger.Debug(ctx, "clip scored",
		logger.String("media_id", mediaID),
		logger.String("key", key.String()),
		logger.Float64("score", score),
		logger.Float64("threshold", b.Threshold),
		logger.String("label", string(label)))

	return types.CheckResult{
		MediaID:        mediaID,
		Bucket:         ref.Bucket,
		Path:           ref.Path,
		AnomalyScore:   score,
		Threshold:      b.Threshold,
		PredictedLabel: string(label),
	}, nil
}

// GetBaseline returns the stored baseline for key.
func (s *Service) GetBaseline(ctx context.Context, key model.Key) (types.BaselineView, error) {
	if _, err := s.ready(); err != nil {
		return types.BaselineView{}, err
	}
	if err := key.Validate(); err != nil {
		return types.BaselineView{}, err
	}
	b, err := s.store.GetBaseline(ctx, key)
	if err != nil {
		return types.BaselineView{}, err
	}
	return types.BaselineView{
		MachineID:   b.Key.MachineID,
		Mode:        b.Key.Mode,
		FeatureMean: b.FeatureMean,
		FeatureStd:  b.FeatureStd,
		Threshold:   b.Threshold,
		NumGood:     b.NumGood,
		NumBad:      b.NumBad,
		UpdatedAt:   b.UpdatedAt,
	}, nil
}

// ListAssessments returns the newest assessments for key. A limit of zero or
// above the configured maximum is clamped to that maximum.
func (s *Service) ListAssessments(ctx context.Context, key model.Key, limit int) ([]types.AssessmentView, error) {
	if _, err := s.ready(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}
	if limit == 0 || limit > s.maxAssessmentLimit {
		limit = s.maxAssessmentLimit
	}

	list, err := s.store.ListAssessments(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.AssessmentView, len(list))
	for i, a := range list {
		out[i] = types.AssessmentView{
			ID:             a.ID,
			MediaID:        a.MediaID,
			MachineID:      a.Key.MachineID,
			Mode:           a.Key.Mode,
			AnomalyScore:   a.AnomalyScore,
			Threshold:      a.Threshold,
			PredictedLabel: string(a.PredictedLabel),
			CreatedAt:      a.CreatedAt,
		}
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"rebuilds":        s.rebuilds.Load(),
		"rebuildFailures": s.rebuildFailures.Load(),
		"clipsScored":     s.clipsScored.Load(),
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.jobs.Len(ctx)
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["fingerprintDim"] = s.extractor.Dim()
		stats["sampleRate"] = s.extractor.SampleRate()
		if n, err := s.store.CountBaselines(ctx); err == nil {
			stats["baselines"] = n
			metrics.UpdateBaselinesTotal(n)
		}
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}

func rebuildOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
