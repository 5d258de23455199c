package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/metrics"
)

// SQLiteStore is the durable Store backed by a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts options
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps the per-connection pragmas below in force and
	// serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteStore{db: db, path: path, opts: o}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if n, err := s.CountBaselines(ctx); err == nil {
		metrics.UpdateBaselinesTotal(n)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) AddMedia(ctx context.Context, ref model.MediaRef) error {
	if err := checkMedia(ref); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sound_media (id, bucket, path, mime_type, created_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET bucket = excluded.bucket, path = excluded.path, mime_type = excluded.mime_type`,
		ref.ID, ref.Bucket, ref.Path, ref.MimeType, s.stamp(time.Time{}))
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddSample(ctx context.Context, sample model.SoundSample) (model.SoundSample, error) {
	sample, err := prepareSample(sample)
	if err != nil {
		return sample, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sample, fmt.Errorf("begin sample tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.stamp(time.Time{})
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sound_media (id, bucket, path, mime_type, created_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		sample.Media.ID, sample.Media.Bucket, sample.Media.Path, sample.Media.MimeType, now); err != nil {
		return sample, fmt.Errorf("insert media: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sound_samples (id, media_id, machine_id, mode, label, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sample.ID, sample.Media.ID, sample.Key.MachineID, sample.Key.Mode, string(sample.Label), now); err != nil {
		return sample, fmt.Errorf("insert sample: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return sample, fmt.Errorf("commit sample: %w", err)
	}
	return sample, nil
}

func (s *SQLiteStore) ListSamples(ctx context.Context, key model.Key) ([]model.SoundSample, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(msSince(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.label, m.id, m.bucket, m.path, m.mime_type
           FROM sound_samples s JOIN sound_media m ON m.id = s.media_id
          WHERE s.machine_id = ? AND s.mode = ?
          ORDER BY s.seq`,
		key.MachineID, key.Mode)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SoundSample
	for rows.Next() {
		sample := model.SoundSample{Key: key}
		var label string
		if err := rows.Scan(&sample.ID, &label, &sample.Media.ID, &sample.Media.Bucket, &sample.Media.Path, &sample.Media.MimeType); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sample.Label = model.Label(label)
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ResolveMedia(ctx context.Context, mediaID string) (model.MediaRef, error) {
	ref := model.MediaRef{ID: mediaID}
	err := s.db.QueryRowContext(ctx,
		`SELECT bucket, path, mime_type FROM sound_media WHERE id = ?`, mediaID).
		Scan(&ref.Bucket, &ref.Path, &ref.MimeType)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.MediaRef{}, fmt.Errorf("%w: %s", ErrNotFound, mediaID)
	}
	if err != nil {
		return model.MediaRef{}, fmt.Errorf("query media: %w", err)
	}
	return ref, nil
}

func (s *SQLiteStore) GetBaseline(ctx context.Context, key model.Key) (model.Baseline, error) {
	b := model.Baseline{Key: key}
	var meanJSON, stdJSON, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT feature_mean, feature_std, threshold, n_good, n_bad, updated_at
           FROM sound_baselines WHERE machine_id = ? AND mode = ?`,
		key.MachineID, key.Mode).
		Scan(&meanJSON, &stdJSON, &b.Threshold, &b.NumGood, &b.NumBad, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Baseline{}, fmt.Errorf("%w: %s", model.ErrBaselineNotFound, key)
	}
	if err != nil {
		return model.Baseline{}, fmt.Errorf("query baseline: %w", err)
	}
	if err := json.Unmarshal([]byte(meanJSON), &b.FeatureMean); err != nil {
		return model.Baseline{}, fmt.Errorf("decode feature_mean: %w", err)
	}
	if err := json.Unmarshal([]byte(stdJSON), &b.FeatureStd); err != nil {
		return model.Baseline{}, fmt.Errorf("decode feature_std: %w", err)
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return model.Baseline{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) UpsertBaseline(ctx context.Context, b model.Baseline) error {
	if err := b.Validate(); err != nil {
		return err
	}
	start := time.Now()
	meanJSON, err := json.Marshal(b.FeatureMean)
	if err != nil {
		return fmt.Errorf("encode feature_mean: %w", err)
	}
	stdJSON, err := json.Marshal(b.FeatureStd)
	if err != nil {
		return fmt.Errorf("encode feature_std: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sound_baselines (machine_id, mode, feature_mean, feature_std, threshold, n_good, n_bad, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(machine_id, mode) DO UPDATE SET
             feature_mean = excluded.feature_mean,
             feature_std  = excluded.feature_std,
             threshold    = excluded.threshold,
             n_good       = excluded.n_good,
             n_bad        = excluded.n_bad,
             updated_at   = excluded.updated_at`,
		b.Key.MachineID, b.Key.Mode, string(meanJSON), string(stdJSON), b.Threshold, b.NumGood, b.NumBad, s.stamp(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	metrics.RecordRepositoryUpdateLatency(msSince(start))
	if n, err := s.CountBaselines(ctx); err == nil {
		metrics.UpdateBaselinesTotal(n)
	}
	return nil
}

func (s *SQLiteStore) CountBaselines(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sound_baselines`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count baselines: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) AppendAssessment(ctx context.Context, a model.Assessment) error {
	if err := a.Key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sound_assessments (id, media_id, machine_id, mode, anomaly_score, threshold, predicted_label, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.MediaID, a.Key.MachineID, a.Key.Mode, a.AnomalyScore, a.Threshold, string(a.PredictedLabel), s.stamp(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, key model.Key, limit int) ([]model.Assessment, error) {
	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, media_id, anomaly_score, threshold, predicted_label, created_at
           FROM sound_assessments WHERE machine_id = ? AND mode = ?
          ORDER BY seq DESC LIMIT ?`,
		key.MachineID, key.Mode, limit)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Assessment, 0, limit)
	for rows.Next() {
		a := model.Assessment{Key: key}
		var label, created string
		if err := rows.Scan(&a.ID, &a.MediaID, &a.AnomalyScore, &a.Threshold, &label, &created); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.PredictedLabel = model.Label(label)
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) stamp(t time.Time) string {
	if t.IsZero() {
		t = s.opts.now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
