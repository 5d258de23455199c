// Package repository persists the sound catalog, baselines and assessments.
package repository

import (
	"context"

	"github.com/deepp5/catrack/internal/domain/model"
)

// Catalog is the read side of the labelled sample catalog.
type Catalog interface {
	// ListSamples returns every labelled sample for key in insertion order.
	ListSamples(ctx context.Context, key model.Key) ([]model.SoundSample, error)
	// ResolveMedia returns the storage location of a media record.
	// Returns ErrNotFound if the media ID is unknown.
	ResolveMedia(ctx context.Context, mediaID string) (model.MediaRef, error)
}

// CatalogWriter seeds the catalog. The engine itself never writes samples.
type CatalogWriter interface {
	AddMedia(ctx context.Context, ref model.MediaRef) error
	// AddSample records a labelled sample and its media. An empty sample ID
	// is replaced by a generated one.
	AddSample(ctx context.Context, sample model.SoundSample) (model.SoundSample, error)
}

// BaselineStore keeps one baseline per (machine, mode).
type BaselineStore interface {
	// GetBaseline returns model.ErrBaselineNotFound when no rebuild has
	// succeeded for key yet.
	GetBaseline(ctx context.Context, key model.Key) (model.Baseline, error)
	// UpsertBaseline atomically replaces the baseline for b.Key.
	UpsertBaseline(ctx context.Context, b model.Baseline) error
	CountBaselines(ctx context.Context) (int, error)
}

// AssessmentStore is the append-only scoring history.
type AssessmentStore interface {
	AppendAssessment(ctx context.Context, a model.Assessment) error
	// ListAssessments returns up to limit records for key, newest first.
	ListAssessments(ctx context.Context, key model.Key, limit int) ([]model.Assessment, error)
}

// Store bundles every port of the service.
type Store interface {
	Catalog
	CatalogWriter
	BaselineStore
	AssessmentStore
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
