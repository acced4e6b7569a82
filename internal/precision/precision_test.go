package precision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshgold/meshgold/internal/backend/cpu"
	"github.com/meshgold/meshgold/internal/tensor"
)

func TestBFloat16RoundTripExact(t *testing.T) {
	// Values with <= 8 significand bits survive unchanged.
	for _, v := range []float32{0, 1, -1, 0.5, 2, 256, -0.25, 1.5} {
		assert.Equal(t, v, RoundBFloat16(v), "value %v", v)
	}
}

func TestBFloat16RoundingError(t *testing.T) {
	// bfloat16 keeps 8 significand bits: relative error <= 2^-8.
	for _, v := range []float32{1.001, 3.14159, -2.71828, 12345.678} {
		got := RoundBFloat16(v)
		relErr := math.Abs(float64(got-v)) / math.Abs(float64(v))
		assert.LessOrEqual(t, relErr, 1.0/256, "value %v rounded to %v", v, got)
	}
}

func TestBFloat16NaN(t *testing.T) {
	nan := float32(math.NaN())
	assert.True(t, math.IsNaN(float64(RoundBFloat16(nan))))
}

func TestFloat8RoundTripExact(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 0.5, 2, 448, -448, 0.0625} {
		assert.Equal(t, v, RoundFloat8(v), "value %v", v)
	}
}

func TestFloat8Saturation(t *testing.T) {
	assert.Equal(t, float32(448), RoundFloat8(1000))
	assert.Equal(t, float32(-448), RoundFloat8(-1000))
}

func TestFloat8Subnormal(t *testing.T) {
	// Smallest subnormal is 2^-9.
	small := float32(math.Ldexp(1, -9))
	assert.Equal(t, small, RoundFloat8(small))
	// Below half the smallest step flushes to zero.
	assert.Equal(t, float32(0), RoundFloat8(float32(math.Ldexp(1, -12))))
}

func TestFloat8RelativeError(t *testing.T) {
	// 3 mantissa bits: relative error <= 2^-4 for normals.
	for _, v := range []float32{1.1, 7.3, -33.3, 100} {
		got := RoundFloat8(v)
		relErr := math.Abs(float64(got-v)) / math.Abs(float64(v))
		assert.LessOrEqual(t, relErr, 1.0/16, "value %v rounded to %v", v, got)
	}
}

func TestToStorageRoundTrip(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	copy(raw.AsFloat32(), []float32{1, 0.5, -2, 3.14159})

	packed, err := ToStorage(raw, tensor.BFloat16)
	require.NoError(t, err)
	assert.Equal(t, tensor.BFloat16, packed.DType())

	back, err := FromStorage(packed)
	require.NoError(t, err)
	got := back.AsFloat32()
	assert.Equal(t, float32(1), got[0])
	assert.Equal(t, float32(0.5), got[1])
	assert.Equal(t, float32(-2), got[2])
	assert.InDelta(t, 3.14159, float64(got[3]), 0.02)
}

func TestWrapRoundsComputeResults(t *testing.T) {
	dev := Wrap(cpu.New(), tensor.BFloat16)

	a, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32)
	require.NoError(t, err)
	b, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32)
	require.NoError(t, err)
	copy(a.AsFloat32(), []float32{1.0001, 2.0001})
	copy(b.AsFloat32(), []float32{1.0001, 2.0001})

	sum := dev.Add(a, b)
	got := sum.AsFloat32()
	for i, v := range got {
		assert.Equal(t, RoundBFloat16(v), v, "result %d not on the bfloat16 grid", i)
	}
}

func TestWrapPassesThroughDataMovement(t *testing.T) {
	dev := Wrap(cpu.New(), tensor.BFloat16)

	a, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	copy(a.AsFloat32(), []float32{1.0001, 2, 3, 4})

	tr := dev.Transpose(a)
	// 1.0001 is not representable in bfloat16; transpose must not round it.
	assert.Equal(t, float32(1.0001), tr.AsFloat32()[0])
}

func TestWrapFloat32IsIdentity(t *testing.T) {
	dev := Wrap(cpu.New(), tensor.Float32)

	a, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32)
	require.NoError(t, err)
	copy(a.AsFloat32(), []float32{1.0001, 2.0001})

	sum := dev.Add(a, a)
	assert.InDelta(t, 2.0002, float64(sum.AsFloat32()[0]), 1e-6)
}

func TestWrapRejectsNonStorageDType(t *testing.T) {
	assert.Panics(t, func() {
		Wrap(cpu.New(), tensor.Int32)
	})
}
