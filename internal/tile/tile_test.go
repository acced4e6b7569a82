package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshgold/meshgold/internal/tensor"
)

func rawF32(t *testing.T, shape tensor.Shape, fill func(i int) float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32)
	require.NoError(t, err)
	data := r.AsFloat32()
	for i := range data {
		data[i] = fill(i)
	}
	return r
}

func TestPadDim(t *testing.T) {
	assert.Equal(t, 32, PadDim(1))
	assert.Equal(t, 32, PadDim(32))
	assert.Equal(t, 64, PadDim(33))
	assert.Equal(t, 128, PadDim(100))
	assert.Equal(t, 0, PadDim(0))
}

func TestTilizeAlignedRoundTrip(t *testing.T) {
	in := rawF32(t, tensor.Shape{64, 64}, func(i int) float32 { return float32(i) })

	tiled, err := Tilize(in)
	require.NoError(t, err)
	assert.Equal(t, tensor.Tiled, tiled.Layout())
	assert.Equal(t, tensor.Shape{64, 64}, tiled.Shape())

	back, err := Untilize(tiled, tensor.Shape{64, 64})
	require.NoError(t, err)
	assert.Equal(t, tensor.RowMajor, back.Layout())
	assert.Equal(t, in.AsFloat32(), back.AsFloat32())
}

func TestTilizePadsUnaligned(t *testing.T) {
	in := rawF32(t, tensor.Shape{3, 40, 17}, func(i int) float32 { return float32(i) + 0.5 })

	tiled, err := Tilize(in)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 64, 32}, tiled.Shape())

	back, err := Untilize(tiled, tensor.Shape{3, 40, 17})
	require.NoError(t, err)
	assert.Equal(t, in.AsFloat32(), back.AsFloat32())
}

func TestTilizeTileOrder(t *testing.T) {
	// 32x64 has two tiles side by side: the second tile's first element
	// is row 0 column 32 of the source and must land right after the
	// first full tile in storage.
	in := rawF32(t, tensor.Shape{32, 64}, func(i int) float32 { return float32(i) })

	tiled, err := Tilize(in)
	require.NoError(t, err)
	data := tiled.AsFloat32()
	assert.Equal(t, float32(0), data[0])
	assert.Equal(t, float32(32), data[Size*Size])
	// Row 1 of tile 0 starts at source index 64.
	assert.Equal(t, float32(64), data[Size])
}

func TestTilizePaddingIsZero(t *testing.T) {
	in := rawF32(t, tensor.Shape{16, 16}, func(i int) float32 { return 1 })

	tiled, err := Tilize(in)
	require.NoError(t, err)
	data := tiled.AsFloat32()
	// Element (16, 0) is padding.
	assert.Equal(t, float32(0), data[16*Size])
	// Element (0, 16) is padding.
	assert.Equal(t, float32(0), data[16])
	assert.Equal(t, float32(1), data[0])
}

func TestTilizeRejectsRank1(t *testing.T) {
	in := rawF32(t, tensor.Shape{8}, func(i int) float32 { return 0 })
	_, err := Tilize(in)
	assert.Error(t, err)
}

func TestUntilizeRejectsMismatch(t *testing.T) {
	in := rawF32(t, tensor.Shape{32, 32}, func(i int) float32 { return 0 })
	tiled, err := Tilize(in)
	require.NoError(t, err)

	_, err = Untilize(tiled, tensor.Shape{40, 32})
	assert.Error(t, err)

	_, err = Untilize(tiled, tensor.Shape{2, 16, 32})
	assert.Error(t, err)
}

func TestUntilizeRejectsRowMajor(t *testing.T) {
	in := rawF32(t, tensor.Shape{32, 32}, func(i int) float32 { return 0 })
	_, err := Untilize(in, tensor.Shape{32, 32})
	assert.Error(t, err)
}

func TestTilizeBFloat16Bytewise(t *testing.T) {
	r, err := tensor.NewRaw(tensor.Shape{32, 32}, tensor.BFloat16)
	require.NoError(t, err)
	bits := r.AsUint16()
	for i := range bits {
		bits[i] = uint16(i)
	}

	tiled, err := Tilize(r)
	require.NoError(t, err)
	back, err := Untilize(tiled, tensor.Shape{32, 32})
	require.NoError(t, err)
	assert.Equal(t, bits, back.AsUint16())
}
