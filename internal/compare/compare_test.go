package compare

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshgold/meshgold/internal/tensor"
)

func rawF32(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32)
	require.NoError(t, err)
	copy(r.AsFloat32(), values)
	return r
}

func randRaw(t *testing.T, n int, rng *rand.Rand) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape{n}, tensor.Float32)
	require.NoError(t, err)
	data := r.AsFloat32()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return r
}

func TestSelfComparisonIsPerfect(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := randRaw(t, 256, rng)

	res, err := CheckPCC(a, a, 0.99)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.Score)
}

func TestConstantTensorsMatch(t *testing.T) {
	vals := make([]float32, 16)
	for i := range vals {
		vals[i] = 5.0
	}
	a := rawF32(t, tensor.Shape{4, 4}, vals)
	b := rawF32(t, tensor.Shape{4, 4}, vals)

	res, err := CheckPCC(a, b, 1.0)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.Score)
}

func TestAllZerosDegenerate(t *testing.T) {
	a := rawF32(t, tensor.Shape{8, 8}, make([]float32, 64))
	b := rawF32(t, tensor.Shape{8, 8}, make([]float32, 64))

	score, err := PCC(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestDegenerateMismatchScoresZero(t *testing.T) {
	fives := make([]float32, 16)
	sixes := make([]float32, 16)
	for i := range fives {
		fives[i] = 5
		sixes[i] = 6
	}
	a := rawF32(t, tensor.Shape{16}, fives)
	b := rawF32(t, tensor.Shape{16}, sixes)

	score, err := PCC(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestSmallNoiseScoresHigh(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := randRaw(t, 1024, rng)

	b, err := tensor.NewRaw(tensor.Shape{1024}, tensor.Float32)
	require.NoError(t, err)
	copy(b.AsFloat32(), a.AsFloat32())
	noisy := b.AsFloat32()
	for i := range noisy {
		noisy[i] += float32(rng.NormFloat64()) * 0.01
	}

	score, err := PCC(a, b)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.99)
	assert.LessOrEqual(t, score, 1.0)
}

func TestThresholdMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randRaw(t, 512, rng)
	b := randRaw(t, 512, rng)
	data := b.AsFloat32()
	src := a.AsFloat32()
	for i := range data {
		data[i] = src[i] + float32(rng.NormFloat64())*0.1
	}

	thresholds := []float64{0.0, 0.5, 0.86, 0.99, 1.0}
	var prev Result
	for i, th := range thresholds {
		res, err := CheckPCC(a, b, th)
		require.NoError(t, err)
		if i > 0 && res.Passed {
			assert.True(t, prev.Passed, "passing at %v but not at a lower threshold", th)
		}
		prev = res
	}
}

func TestScoreSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a := randRaw(t, 128, rng)
	b := randRaw(t, 128, rng)

	sab, err := PCC(a, b)
	require.NoError(t, err)
	sba, err := PCC(b, a)
	require.NoError(t, err)
	assert.InDelta(t, sab, sba, 1e-12)
}

func TestShapeMismatch(t *testing.T) {
	a := rawF32(t, tensor.Shape{4}, []float32{1, 2, 3, 4})
	b := rawF32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})

	_, err := PCC(a, b)
	assert.Error(t, err)
}

func TestThresholdRange(t *testing.T) {
	a := rawF32(t, tensor.Shape{4}, []float32{1, 2, 3, 4})

	_, err := CheckPCC(a, a, 1.5)
	assert.Error(t, err)
	_, err = CheckPCC(a, a, -0.1)
	assert.Error(t, err)
}

func TestAssertPCCCarriesScore(t *testing.T) {
	a := rawF32(t, tensor.Shape{4}, []float32{1, 2, 3, 4})
	b := rawF32(t, tensor.Shape{4}, []float32{4, 3, 2, 1})

	err := AssertPCC(a, b, 0.99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0.99")
	assert.Contains(t, err.Error(), "below threshold")
}

func TestExactMatch(t *testing.T) {
	a, err := tensor.NewRaw(tensor.Shape{4}, tensor.Int32)
	require.NoError(t, err)
	b, err := tensor.NewRaw(tensor.Shape{4}, tensor.Int32)
	require.NoError(t, err)
	copy(a.AsInt32(), []int32{1, 2, 3, 4})
	copy(b.AsInt32(), []int32{1, 2, 3, 4})

	res, err := Exact(a, b)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.Score)

	b.AsInt32()[2] = 9
	res, err = Exact(a, b)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, 0.0, res.Score)
}

func TestExactRejectsFloat(t *testing.T) {
	a := rawF32(t, tensor.Shape{4}, []float32{1, 2, 3, 4})
	_, err := Exact(a, a)
	assert.Error(t, err)
}

func TestAllClose(t *testing.T) {
	a := rawF32(t, tensor.Shape{3}, []float32{1, 2, 3})
	b := rawF32(t, tensor.Shape{3}, []float32{1.0001, 2.0001, 3.0001})

	ok, err := AllClose(a, b, 1e-3, 1e-3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AllClose(a, b, 0, 1e-6)
	require.NoError(t, err)
	assert.False(t, ok)
}
