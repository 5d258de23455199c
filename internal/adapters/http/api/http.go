// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/internal/domain/types"
)

const (
	defaultMode     = "idle"
	defaultMaxLimit = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RebuildBaseline(ctx context.Context, key model.Key) (types.RebuildResult, error)
	ScoreClip(ctx context.Context, mediaID string, key model.Key) (types.CheckResult, error)
	GetBaseline(ctx context.Context, key model.Key) (types.BaselineView, error)
	ListAssessments(ctx context.Context, key model.Key, limit int) ([]types.AssessmentView, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithDefaultMode sets the mode used when a request omits it.
func WithDefaultMode(mode string) Option {
	return func(s *Server) {
		if mode != "" {
			s.defaultMode = mode
		}
	}
}

// WithMaxLimit caps the limit accepted by GET /sound/assessments.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	defaultMode string
	maxLimit    int

	rootHandler   *RootHandler
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	soundHandler  *SoundHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{defaultMode: defaultMode, maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.rootHandler = NewRootHandler()
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.soundHandler = NewSoundHandler(deps, s.defaultMode, s.maxLimit)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/", MetricsMiddleware(s.rootHandler.HandleRoot, "root"))
	mux.HandleFunc("/ping", MetricsMiddleware(s.rootHandler.HandlePing, "ping"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sound/baseline/rebuild", MetricsMiddleware(s.soundHandler.HandleRebuild, "sound_rebuild"))
	mux.HandleFunc("/sound/baseline", MetricsMiddleware(s.soundHandler.HandleGetBaseline, "sound_baseline"))
	mux.HandleFunc("/sound/check", MetricsMiddleware(s.soundHandler.HandleCheck, "sound_check"))
	mux.HandleFunc("/sound/assessments", MetricsMiddleware(s.soundHandler.HandleListAssessments, "sound_assessments"))
}
