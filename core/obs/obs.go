/*
This pkg defines some helpers for creating observations and putting them into
boards of remote nodes (pkg/kmeans/rpc) conveniently. Observations made here
are synthetic; random blobs of points on an integer grid, or points spread
uniformly over a box.
*/
package obs

import (
	"math/rand"

	"kmboard/pkg/kmeans"
	"kmboard/pkg/kmeans/rpc"
)

type Observation = kmeans.Observation

// Bounds is an inclusive integer box, one Min/Max pair per dimension.
type Bounds struct {
	Min []int `json:"min"`
	Max []int `json:"max"`
}

// CanvasBounds is the default 2d drawing area.
var CanvasBounds = Bounds{Min: []int{0, 0}, Max: []int{500, 500}}

// Dim is the dimensionality of the box, 0 when Min and Max disagree.
func (b Bounds) Dim() int {
	if len(b.Min) != len(b.Max) {
		return 0
	}
	return len(b.Min)
}

// randInt returns an int in [a, b], in either order.
func randInt(rng *rand.Rand, a, b int) int {
	if b < a {
		a, b = b, a
	}
	return a + rng.Intn(b-a+1)
}

// DefaultMaxIntensity caps BlobArgs.Intensity when BlobArgs.MaxIntensity
// isn't set.
const DefaultMaxIntensity = 50

type BlobArgs struct {
	// Bounds the centre of the blob is picked in.
	Bounds Bounds
	// Intensity is both the amount of points and the spread: every point is
	// within 3*Intensity of the centre along each axis.
	Intensity int
	// MaxIntensity clamps Intensity, DefaultMaxIntensity if < 1.
	MaxIntensity int
}

// RandomBlob creates a blob of points around a random centre. The points
// themselves are not clamped to the bounds, only the centre is. Intensity is
// clamped to MaxIntensity. Nil if Intensity < 1 or the bounds are malformed.
func RandomBlob(rng *rand.Rand, args BlobArgs) []Observation {
	dim := args.Bounds.Dim()
	if args.Intensity < 1 || dim == 0 {
		return nil
	}
	max := args.MaxIntensity
	if max < 1 {
		max = DefaultMaxIntensity
	}
	if args.Intensity > max {
		args.Intensity = max
	}

	centre := make([]int, dim)
	for i := range centre {
		centre[i] = randInt(rng, args.Bounds.Min[i], args.Bounds.Max[i])
	}

	spread := args.Intensity * 3
	res := make([]Observation, args.Intensity)
	for i := range res {
		o := make(Observation, dim)
		for j, c := range centre {
			o[j] = float64(randInt(rng, c-spread, c+spread))
		}
		res[i] = o
	}
	return res
}

// Uniform creates n points of dimension dim with each value in [min, max).
func Uniform(rng *rand.Rand, n, dim int, min, max float64) []Observation {
	if n < 1 || dim < 1 {
		return nil
	}
	res := make([]Observation, n)
	for i := range res {
		o := make(Observation, dim)
		for j := range o {
			o[j] = min + rng.Float64()*(max-min)
		}
		res[i] = o
	}
	return res
}

// Put stages observations on the board 'namespace' of the node at 'addr',
// creating the board if needed. Returns the pending count of the board.
func Put(addr, namespace string, observations []Observation) (int, error) {
	var err error
	pending := rpc.KMeansClient(addr, namespace, &err).Observe(observations)
	return pending, err
}

// PutRandomBlob is RandomBlob followed by Put. Returns the blob.
func PutRandomBlob(addr, namespace string, rng *rand.Rand, args BlobArgs) ([]Observation, error) {
	blob := RandomBlob(rng, args)
	if _, err := Put(addr, namespace, blob); err != nil {
		return nil, err
	}
	return blob, nil
}
