package kmeans

import "kmboard/pkg/mathutils"

// Observation is a point in d-dimensional space. A session fixes d on
// construction and every observation and centroid it holds has that length.
type Observation = []float64

// Readability alias: standard generator that returns vectors (false=stop).
type vecGenerator = func() ([]float64, bool)

// sliceGenerator iterates over vecs.
func sliceGenerator(vecs [][]float64) vecGenerator {
	i := 0
	return func() ([]float64, bool) {
		if i >= len(vecs) {
			return nil, false
		}
		i++
		return vecs[i-1], true
	}
}

// copyObservations deep copies observations so the session never shares
// backing arrays with its callers.
func copyObservations(observations []Observation) []Observation {
	return mathutils.VecsCopy(observations)
}

// ValidateObservations checks that every observation has 'dim' finite
// values. A dim of zero means "use the length of the first observation".
// Empty observations are rejected as they carry no coordinates.
func ValidateObservations(observations []Observation, dim int) error {
	for i, o := range observations {
		if dim == 0 {
			dim = len(o)
		}
		if len(o) == 0 || len(o) != dim {
			return &DimensionError{Expected: dim, Actual: len(o), Index: i}
		}
		if !mathutils.VecFinite(o) {
			return &ValueError{Index: i}
		}
	}
	return nil
}
