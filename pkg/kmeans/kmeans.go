/*
Package kmeans keeps an incrementally growing set of observations
partitioned into k clusters. A Session is stepped by its owner: every
Step optionally takes in new observations and then does one Lloyd
iteration (assign, update, reassign). Sessions never stop on their own
and have no internal concurrency; callers serialise access.

*/
package kmeans

import (
	"math/rand"

	"kmboard/pkg/searchutils"

	"github.com/rs/zerolog/log"
)

// Session is a single clustering run with a fixed k.
type Session struct {
	k         int
	dim       int
	iteration int

	observations []Observation
	// labels[i] is the cluster index of observations[i].
	labels    []int
	centroids []*Centroid

	// Amount of clusters that had no members on the last update.
	degenerate int

	rng *rand.Rand
}

// New sets up a session over a copy of 'observations'. k distinct
// observations are sampled uniformly at random (without replacement) as the
// initial centroids and every observation is labelled. Returns a
// *ConfigError if k is not within [1, len(observations)] and a
// *DimensionError if observations have mixed or zero length (a *ValueError
// if any holds NaN or Inf).
func New(observations []Observation, k int, opts ...Option) (*Session, error) {
	if k < 1 || k > len(observations) {
		return nil, &ConfigError{K: k, N: len(observations)}
	}
	if err := ValidateObservations(observations, 0); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	s := &Session{
		k:            k,
		dim:          len(observations[0]),
		observations: copyObservations(observations),
		labels:       make([]int, 0, len(observations)),
		centroids:    make([]*Centroid, k),
		rng:          o.rng,
	}

	// Shuffle-and-take-k, distinct indexes since k <= n.
	perm := s.rng.Perm(len(s.observations))
	for i := 0; i < k; i++ {
		s.centroids[i] = NewCentroidFromVec(s.observations[perm[i]])
	}

	s.AssignLabels()
	return s, nil
}

func (s *Session) centroidVecGenerator() vecGenerator {
	i := 0
	return func() ([]float64, bool) {
		if i >= len(s.centroids) {
			return nil, false
		}
		i++
		return s.centroids[i-1].Vec(), true
	}
}

// nearestCentroid returns the index of the centroid closest to 'vec',
// lowest index on ties.
func (s *Session) nearestCentroid(vec []float64) int {
	indexes := searchutils.KNNEuc(vec, s.centroidVecGenerator(), 1)
	if len(indexes) == 0 {
		// Only reachable with NaN coordinates.
		return 0
	}
	return indexes[0]
}

// AssignLabels labels every observation with the index of its nearest
// centroid (euclidean distance, lowest index on ties). Observations and
// centroids are left alone.
func (s *Session) AssignLabels() {
	for len(s.labels) < len(s.observations) {
		s.labels = append(s.labels, 0)
	}
	s.labels = s.labels[:len(s.observations)]

	for i, o := range s.observations {
		s.labels[i] = s.nearestCentroid(o)
	}
}

// membersGenerator iterates over the observations at 'indexes'.
func (s *Session) membersGenerator(indexes []int) vecGenerator {
	i := 0
	return func() ([]float64, bool) {
		if i >= len(indexes) {
			return nil, false
		}
		i++
		return s.observations[indexes[i-1]], true
	}
}

// RecomputeCentroids moves every centroid to the mean of the observations
// currently labelled with its index. A centroid without members stays where
// it is. Returns the amount of such (degenerate) clusters.
func (s *Session) RecomputeCentroids() int {
	members := make([][]int, s.k)
	for i, label := range s.labels {
		members[label] = append(members[label], i)
	}

	s.degenerate = 0
	for c, centroid := range s.centroids {
		if !centroid.MoveVector(s.membersGenerator(members[c])) {
			s.degenerate++
			log.Debug().
				Int("cluster", c).
				Int("k", s.k).
				Int("iteration", s.iteration).
				Msg("empty cluster, centroid left in place")
		}
	}
	return s.degenerate
}

// Step appends 'newObservations' (copied, order kept) and relabels
// everything against the current centroids, then does one refinement pass:
// recompute centroids, reassign labels, bump the iteration counter. The
// counter moves even when there is nothing new. If any new observation has
// the wrong dimensionality a *DimensionError is returned (a *ValueError for
// NaN or Inf) and the session is left untouched.
func (s *Session) Step(newObservations []Observation) error {
	if err := ValidateObservations(newObservations, s.dim); err != nil {
		return err
	}

	if len(newObservations) > 0 {
		s.observations = append(s.observations, copyObservations(newObservations)...)
		s.AssignLabels()
	}

	s.RecomputeCentroids()
	s.AssignLabels()
	s.iteration++
	return nil
}

// K returns the amount of clusters.
func (s *Session) K() int { return s.k }

// Dim returns the dimensionality of observations and centroids.
func (s *Session) Dim() int { return s.dim }

// Iteration returns the amount of completed Step calls.
func (s *Session) Iteration() int { return s.iteration }

// Len returns the amount of observations.
func (s *Session) Len() int { return len(s.observations) }

// Degenerate returns how many clusters were empty on the last update.
func (s *Session) Degenerate() int { return s.degenerate }

// Observations returns a copy of all observations in insertion order.
func (s *Session) Observations() []Observation {
	return copyObservations(s.observations)
}

// Labels returns a copy of the labels, parallel to Observations.
func (s *Session) Labels() []int {
	labels := make([]int, len(s.labels))
	copy(labels, s.labels)
	return labels
}

// Centroids returns a copy of the centroid positions, index = cluster id.
func (s *Session) Centroids() [][]float64 {
	res := make([][]float64, len(s.centroids))
	for i, c := range s.centroids {
		res[i] = append([]float64(nil), c.Vec()...)
	}
	return res
}
