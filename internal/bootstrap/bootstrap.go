// Package bootstrap turns a Config into a running sound service. The HTTP
// server and soundctl share it so both see the same engine.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/deepp5/catrack/internal/adapters/audio"
	"github.com/deepp5/catrack/internal/adapters/repository"
	"github.com/deepp5/catrack/internal/adapters/storage"
	service "github.com/deepp5/catrack/internal/app"
	"github.com/deepp5/catrack/internal/config"
	"github.com/deepp5/catrack/internal/domain/baseline"
	"github.com/deepp5/catrack/internal/domain/features"
	"github.com/deepp5/catrack/internal/domain/scoring"
	"github.com/deepp5/catrack/pkg/logger"
)

// ErrNoStorage is returned when neither storage_dir nor storage_base_url is set.
var ErrNoStorage = errors.New("no clip storage configured: set storage_dir or storage_base_url")

// Runtime holds the wired components. Close releases them in reverse order.
type Runtime struct {
	Config  *config.Config
	Store   repository.Store
	Fetcher storage.Fetcher
	// Files is set when clips live in a local directory; soundctl writes
	// synthetic clips through it.
	Files   *storage.DirFetcher
	Service *service.Service
}

// Open builds every component from cfg and starts the service. ctx must
// outlive the runtime because the worker pool runs on it.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	if log == nil {
		log = logger.Get()
	}

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Store: store}

	rt.Fetcher, rt.Files, err = NewFetcher(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts, err := ServiceOptions(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	opts = append(opts,
		service.WithStore(store),
		service.WithFetcher(rt.Fetcher),
		service.WithLogger(log.Named("sound-service")),
	)
	rt.Service = service.New(opts...)
	if err := rt.Service.Start(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("start service: %w", err)
	}
	return rt, nil
}

// Close stops the service and closes the store.
func (r *Runtime) Close() error {
	if r.Service != nil {
		r.Service.Stop()
	}
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// NewStore opens SQLite at cfg.DBPath, or an in-memory store when it is empty.
func NewStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DBPath == "" {
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

// NewFetcher picks the clip source. A local directory wins over HTTP.
func NewFetcher(cfg *config.Config, log logger.Logger) (storage.Fetcher, *storage.DirFetcher, error) {
	switch {
	case cfg.StorageDir != "":
		dir := storage.NewDirFetcher(cfg.StorageDir, storage.WithDirMaxBytes(cfg.MaxClipBytes))
		return dir, dir, nil
	case cfg.StorageBaseURL != "":
		return storage.NewHTTPFetcher(cfg.StorageBaseURL,
			storage.WithToken(cfg.StorageToken),
			storage.WithTimeout(cfg.FetchTimeout()),
			storage.WithMaxBytes(cfg.MaxClipBytes),
			storage.WithHTTPLogger(log.Named("fetcher")),
		), nil, nil
	}
	return nil, nil, ErrNoStorage
}

// ServiceOptions builds the engine options (decoder, extractor, scorer,
// builder, pool sizing) from cfg.
func ServiceOptions(ctx context.Context, cfg *config.Config, log logger.Logger) ([]service.Option, error) {
	ex, err := features.NewExtractor(
		features.WithSampleRate(cfg.SampleRate),
		features.WithFrame(cfg.FrameSize, cfg.HopSize),
		features.WithNumCoefficients(cfg.NumCoefficients),
		features.WithNumMelFilters(cfg.NumMelFilters),
	)
	if err != nil {
		return nil, fmt.Errorf("feature extractor: %w", err)
	}

	ffmpeg := cfg.FFmpegPath
	if ffmpeg != "" {
		if _, err := exec.LookPath(ffmpeg); err != nil {
			log.Warn(ctx, "ffmpeg not found, only WAV clips can be decoded",
				logger.String("ffmpeg_path", ffmpeg), logger.Error(err))
			ffmpeg = ""
		}
	}
	dec := audio.NewDecoder(
		audio.WithSampleRate(cfg.SampleRate),
		audio.WithFFmpeg(ffmpeg),
		audio.WithTimeout(cfg.DecodeTimeout()),
		audio.WithLogger(log.Named("decoder")),
	)

	scorer := scoring.NewZScoreScorer(scoring.WithScale(cfg.ScoreScale))
	builder := baseline.NewBuilder(
		baseline.WithMarginFactor(cfg.MarginFactor),
		baseline.WithStdEpsilon(cfg.StdEpsilon),
		baseline.WithScorer(scorer),
	)

	return []service.Option{
		service.WithExtractor(ex),
		service.WithDecoder(dec),
		service.WithScorer(scorer),
		service.WithBuilder(builder),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithClipTimeout(cfg.ClipTimeout()),
		service.WithMaxAssessmentLimit(cfg.MaxAssessmentLimit),
	}, nil
}
