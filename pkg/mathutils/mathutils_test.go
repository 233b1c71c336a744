package mathutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sliceGen(vecs [][]float64) func() ([]float64, bool) {
	i := 0
	return func() ([]float64, bool) {
		if i >= len(vecs) {
			return nil, false
		}
		i++
		return vecs[i-1], true
	}
}

func TestEuclideanDistance(t *testing.T) {
	d, err := EuclideanDistance([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 5.0, d)

	d, err = EuclideanDistance([]float64{1, 2, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	_, err = EuclideanDistance([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrVecLen)
}

func TestVecMean(t *testing.T) {
	vecs := [][]float64{{0, 0}, {0, 1}, {3, 2}}
	mean, ok := VecMean(sliceGen(vecs))
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{1, 1}, mean, 1e-12)

	// Input must be left alone.
	assert.Equal(t, []float64{0, 0}, vecs[0])

	_, ok = VecMean(sliceGen(nil))
	assert.False(t, ok, "empty generator")

	_, ok = VecMean(sliceGen([][]float64{{1, 1}, {1}}))
	assert.False(t, ok, "ragged vectors")
}

func TestVecMeanLargeValues(t *testing.T) {
	max := math.MaxFloat64
	mean, ok := VecMean(sliceGen([][]float64{{1e308, 0}, {1e308, 0}}))
	require.True(t, ok)
	assert.Equal(t, []float64{1e308, 0}, mean)

	mean, ok = VecMean(sliceGen([][]float64{{1e308, -1e308}, {1e308, -1e308}, {1e308, -1e308}}))
	require.True(t, ok)
	assert.True(t, VecFinite(mean), "%v", mean)
	assert.InEpsilon(t, 1e308, mean[0], 1e-12)
	assert.InEpsilon(t, -1e308, mean[1], 1e-12)

	mean, ok = VecMean(sliceGen([][]float64{{max}, {-max}}))
	require.True(t, ok)
	assert.Equal(t, 0.0, mean[0])
}

func TestVecFinite(t *testing.T) {
	assert.True(t, VecFinite([]float64{1, -1e308}))
	assert.True(t, VecFinite(nil))
	assert.False(t, VecFinite([]float64{1, math.NaN()}))
	assert.False(t, VecFinite([]float64{math.Inf(-1)}))
}

func TestVecCopy(t *testing.T) {
	a := []float64{1, 2}
	b := VecCopy(a)
	b[0] = 9
	assert.Equal(t, 1.0, a[0])
	assert.Nil(t, VecCopy(nil))

	vecs := [][]float64{{1}, {2}}
	cp := VecsCopy(vecs)
	cp[1][0] = 5
	assert.Equal(t, 2.0, vecs[1][0])
}

func TestVecEq(t *testing.T) {
	assert.True(t, VecEq([]float64{1, 2}, []float64{1, 2}))
	assert.False(t, VecEq([]float64{1, 2}, []float64{2, 1}))
	assert.False(t, VecEq([]float64{1, 2}, []float64{1}))
}

func TestMaxDisplacement(t *testing.T) {
	before := [][]float64{{0, 0}, {10, 10}}
	after := [][]float64{{0, 1}, {13, 14}}
	assert.Equal(t, 5.0, MaxDisplacement(before, after))
	assert.Equal(t, 0.0, MaxDisplacement(nil, nil))
	assert.True(t, math.IsInf(MaxDisplacement(before, after[:1]), 1))
	assert.True(t, math.IsInf(MaxDisplacement([][]float64{{1}}, [][]float64{{1, 2}}), 1))
}
