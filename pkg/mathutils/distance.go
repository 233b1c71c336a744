/*
This file contains a few functions which help with finding 'similarity'
between vectors. Only euclidean distance is in use by the clustering code.

*/

package mathutils

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// ErrVecLen is returned when two vectors that should be compared or combined
// are of different lengths.
var ErrVecLen = errors.New("vectors are of different lengths")

// EuclideanDistance finds the euclidean distance (L2 norm of the difference)
// between two vectors. Returns an err if the vectors are of different length.
func EuclideanDistance(v1, v2 []float64) (float64, error) {
	if len(v1) != len(v2) {
		return 0, ErrVecLen
	}
	return floats.Distance(v1, v2, 2), nil
}
