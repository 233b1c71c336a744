package kmeans

import "kmboard/pkg/mathutils"

// Snapshot is a read-only copy of session state, meant for renderers.
type Snapshot struct {
	K             int           `json:"k"`
	Dim           int           `json:"dim"`
	Iteration     int           `json:"iteration"`
	Observations  []Observation `json:"observations"`
	Labels        []int         `json:"labels"`
	Centroids     [][]float64   `json:"centroids"`
	EmptyClusters int           `json:"emptyClusters"`
}

// Snapshot copies the current state out of the session.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		K:             s.k,
		Dim:           s.dim,
		Iteration:     s.iteration,
		Observations:  s.Observations(),
		Labels:        s.Labels(),
		Centroids:     s.Centroids(),
		EmptyClusters: s.degenerate,
	}
}

// MaxCentroidShift returns the largest distance any centroid moved between
// two centroid sets (as returned by Session.Centroids). Callers can use it
// to stop stepping once it falls below some threshold; sessions themselves
// never check for convergence. +Inf on mismatched shapes.
func MaxCentroidShift(before, after [][]float64) float64 {
	return mathutils.MaxDisplacement(before, after)
}
