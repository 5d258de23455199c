// Package types contains common types used across the application
package types

import "time"

// RebuildResult is returned by POST /sound/baseline/rebuild.
type RebuildResult struct {
	MachineID string   `json:"machine_id"`
	Mode      string   `json:"mode"`
	NumGood   int      `json:"n_good"`
	NumBad    int      `json:"n_bad"`
	NumSkip   int      `json:"n_skipped"`
	MaxGood   float64  `json:"max_good"`
	MinBad    *float64 `json:"min_bad"`
	Threshold float64  `json:"threshold"`
	Separated bool     `json:"separated"`
}

// CheckResult is returned by POST /sound/check
type CheckResult struct {
	MediaID        string  `json:"media_id"`
	Bucket         string  `json:"bucket,omitempty"`
	Path           string  `json:"path,omitempty"`
	AnomalyScore   float64 `json:"anomaly_score"`
	Threshold      float64 `json:"threshold"`
	PredictedLabel string  `json:"predicted_label"`
}

// BaselineView is the read shape of a stored baseline.
type BaselineView struct {
	MachineID   string    `json:"machine_id"`
	Mode        string    `json:"mode"`
	FeatureMean []float64 `json:"feature_mean"`
	FeatureStd  []float64 `json:"feature_std"`
	Threshold   float64   `json:"threshold"`
	NumGood     int       `json:"n_good"`
	NumBad      int       `json:"n_bad"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssessmentView is the read shape of one assessment record
type AssessmentView struct {
	ID             string    `json:"id"`
	MediaID        string    `json:"media_id"`
	MachineID      string    `json:"machine_id"`
	Mode           string    `json:"mode"`
	AnomalyScore   float64   `json:"anomaly_score"`
	Threshold      float64   `json:"threshold"`
	PredictedLabel string    `json:"predicted_label"`
	CreatedAt      time.Time `json:"created_at"`
}
