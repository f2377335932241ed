package config

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ClusterResult is what a Lloyd run produces: the final centroid table and
// its cost, plus the configuration that produced it (spec.md §3). Assignments
// are not retained — they are derived from centroids + points on demand.
type ClusterResult struct {
	RunID     string      `json:"run_id"`
	Centroids [][]float32 `json:"centroids"`
	Cost      float64     `json:"cost"`
	Config    Config      `json:"config"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewClusterResult stamps a fresh RunID and timestamp, the same job-identity
// idiom as the teacher's internal/server/job.go (uuid.New().String()),
// generalized from a long-lived server job ID to a one-shot run identifier.
func NewClusterResult(centroids [][]float32, cost float64, cfg Config) *ClusterResult {
	return &ClusterResult{
		RunID:     uuid.New().String(),
		Centroids: centroids,
		Cost:      cost,
		Config:    cfg,
		Timestamp: time.Now(),
	}
}

// Validate reports whether r is a structurally well-formed result.
func (r *ClusterResult) Validate() error {
	if len(r.Centroids) == 0 {
		return &ValidationError{Field: "Centroids", Reason: "cannot be empty"}
	}
	d := len(r.Centroids[0])
	for i, row := range r.Centroids {
		if len(row) != d {
			return &ValidationError{Field: "Centroids", Reason: "row length mismatch at index " + strconv.Itoa(i)}
		}
	}
	if r.Config.K != len(r.Centroids) {
		return &ValidationError{Field: "Config.K", Reason: "does not match centroid row count"}
	}
	return nil
}
