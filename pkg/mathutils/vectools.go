package mathutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// VecMean computes the coordinate-wise mean of all vectors produced by
// 'generator' (bool=false signals end). The bool return is false if the
// generator was empty or if it produced vectors of different lengths, in
// which case the returned vec should not be used. The mean is kept as a
// running mean, so it stays finite for any finite input.
func VecMean(generator func() ([]float64, bool)) ([]float64, bool) {
	vec, cont := generator()
	if !cont {
		return nil, false
	}

	res := VecCopy(vec)

	n := 1.
	for {
		vec, cont := generator()
		if !cont {
			break
		}
		if len(vec) != len(res) {
			return res, false
		}
		n++
		// mean = mean*(n-1)/n + vec/n
		floats.Scale((n-1)/n, res)
		floats.AddScaled(res, 1/n, vec)
	}

	return res, true
}

// VecFinite checks that vec holds no NaN or Inf.
func VecFinite(vec []float64) bool {
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// VecCopy returns a copy of vec (nil stays nil).
func VecCopy(vec []float64) []float64 {
	if vec == nil {
		return nil
	}
	res := make([]float64, len(vec))
	copy(res, vec)
	return res
}

// VecsCopy deep copies a slice of vectors.
func VecsCopy(vecs [][]float64) [][]float64 {
	res := make([][]float64, len(vecs))
	for i, v := range vecs {
		res[i] = VecCopy(v)
	}
	return res
}

// VecEq checks if two vectors hold the same values.
func VecEq(a, b []float64) bool {
	return floats.Equal(a, b)
}

// MaxDisplacement pairs up vectors in 'before' and 'after' by index and
// returns the largest euclidean distance between any pair. Mismatched
// shapes give +Inf, empty input gives 0.
func MaxDisplacement(before, after [][]float64) float64 {
	if len(before) != len(after) {
		return math.Inf(1)
	}
	var r float64
	for i := range before {
		d, err := EuclideanDistance(before[i], after[i])
		if err != nil {
			return math.Inf(1)
		}
		r = math.Max(r, d)
	}
	return r
}
