package kmeans

import "kmboard/pkg/mathutils"

// Centroid is the representative point of one cluster.
type Centroid struct {
	vec []float64
}

// NewCentroidFromVec creates a Centroid with a copy of vec.
func NewCentroidFromVec(vec []float64) *Centroid {
	return &Centroid{vec: mathutils.VecCopy(vec)}
}

// Vec returns the position of the centroid. Callers must not modify it.
func (c *Centroid) Vec() []float64 { return c.vec }

// MoveVector moves the centroid to the mean of the member vectors produced
// by 'members'. If the generator yields nothing (a degenerate cluster) or
// yields vectors of the wrong length, the centroid stays where it is and
// false is returned.
func (c *Centroid) MoveVector(members vecGenerator) bool {
	vec, ok := mathutils.VecMean(members)
	if !ok || len(vec) != len(c.vec) {
		return false
	}
	c.vec = vec
	return true
}
