/*
This file contains a few funcs which do 'normal' k-nearest (or furthest) neighs
searching using vectors. The main implementation is with KNNBrute(...), while
the other exported funcs (below it) are just convenience funcs/prefabs which
configure KNNBrute.

*/

package searchutils

import (
	"math"

	"kmboard/pkg/mathutils"
)

// Internal type for tracking searched elements that are best..
type resultItem struct {
	// The search funcs essentially operate on iterables (currently
	// generators) and return a slice of indexes which represent
	// elements in those iterables. This var represent those indexes.
	index int
	// Used in search funcs to keep track of vector relevance.
	score float64
	// Used a signal for whether or not the instance of resultItem
	// is actually used and not just initialised.
	set bool
}

// bubble inserts the 'insertee' into 'items' in an ordered manner (in place),
// without changing the length of 'items' (i.e a value will be lost). The order
// is specified with the related arg. Note: only works as expected only if the
// 'items' slice is already sorted. Equal scores never swap, so among ties the
// element that was inserted first (lowest index) stays in front.
// 		Example(0, [1,2,3], true) -> [0,1,2]
// 		Example(3, [2,1,0], false) -> [3,2,1]
func bubble(insertee *resultItem, items []resultItem, ascending bool) {
	for i := 0; i < len(items); i++ {
		// Clarification: '|| !items[i].set' specifies that score can be set if the item is inactive.
		if (insertee.score > items[i].score || !items[i].set) && !ascending {
			*insertee, items[i] = items[i], *insertee
		}
		// Clarification: '|| !items[i].set' specifies that score can be set if the item is inactive.
		if (insertee.score < items[i].score || !items[i].set) && ascending {
			*insertee, items[i] = items[i], *insertee
		}
		// Nothing more to push down.
		if !insertee.set {
			return
		}
	}
}

// resItems2Indexes simply converts a slice of resultItems to a slice of contained index values.
func resItems2Indexes(items []resultItem) []int {
	res := make([]int, 0, len(items))
	for i := 0; i < len(items); i++ {
		if items[i].set {
			res = append(res, items[i].index)
		}
	}
	return res
}

// KNNBruteArgs contain arguments for KNNBrute. All args must be specified.
type KNNBruteArgs struct {
	// In a KNN scenario, this specifies what neighs must be near to.
	TargetVec []float64
	// Intended to be a generator which returns all possible vectors that
	// TargetVec will be compared to (bool=false signals end of iterable).
	// A generator is used because it makes the search funcs more generic,
	// without having the issue with []T -> []U conversion in Go.
	VecPoolGenerator func() ([]float64, bool)
	// In a KNN scenario, this specifies the K.
	K int
	// Specifies how the KNN search funcs will evaluate significance
	// of neighs. If using Euclidean distance as DistFunc, then smaller
	// is better and Ascending should be true. If the caller intends to
	// find elements that are furthest away, Ascending should be false.
	Ascending bool
	// Distance/Similarity function for comparing vectors.
	// Note, this is paired with the Ascending field.
	DistFunc func(v1, v2 []float64) (float64, error)
}

// KNNBrute is a general-purpose linear search for finding k nearest
// (or furthest) neighs of a vector, and then returning their index.
// Vectors that DistFunc rejects, or that score NaN, are skipped. Ties
// resolve to the lowest index. See KNNBruteArgs for more info.
func KNNBrute(args KNNBruteArgs) []int {
	if args.K <= 0 {
		return nil
	}
	res := make([]resultItem, args.K)
	// Worst possible score, anything that is a number passes it.
	worst := math.Inf(1)
	if !args.Ascending {
		worst = math.Inf(-1)
	}
	for i := 0; i < args.K; i++ {
		res[i].score = worst
	}
	i := 0
	for {
		// Next vector.
		v, cont := args.VecPoolGenerator()
		if !cont {
			break
		}
		// Next score.
		score, err := args.DistFunc(args.TargetVec, v)
		if err != nil || math.IsNaN(score) {
			i++
			continue
		}
		// Evaluate inclusion of current vector.
		newSlot := &resultItem{i, score, true}
		bubble(newSlot, res, args.Ascending)
		i++
	}
	return resItems2Indexes(res)
}

// KNNEuc finds 'k' nearest neighs using Euclidean distance. It accepts 'targetVec' which
// is compared to all vectors given by 'vecPoolGenerator' (bool=false signals stop).
// The return is a slice of indexes referencing the nearest neighs.
func KNNEuc(targetVec []float64, vecPoolGenerator func() ([]float64, bool), k int) []int {
	return KNNBrute(KNNBruteArgs{
		TargetVec:        targetVec,
		VecPoolGenerator: vecPoolGenerator,
		K:                k,
		Ascending:        true,
		DistFunc:         mathutils.EuclideanDistance,
	})
}
