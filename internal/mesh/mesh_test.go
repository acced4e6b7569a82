package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshgold/meshgold/internal/precision"
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

func TestShardConcatRoundTrip(t *testing.T) {
	m, err := Linear(4)
	require.NoError(t, err)

	in := rawF32(t, tensor.Shape{8, 6}, func(i int) float32 { return float32(i) })

	for dim := 0; dim < 2; dim++ {
		if in.Shape()[dim]%m.NumDevices() != 0 {
			continue
		}
		shards, err := ShardToMesh(m, in, dim)
		require.NoError(t, err)
		require.Len(t, shards, 4)

		back, err := ConcatFromMesh(shards, dim)
		require.NoError(t, err)
		assert.Equal(t, in.Shape(), back.Shape())
		assert.Equal(t, in.AsFloat32(), back.AsFloat32())
	}
}

func TestShardAlongInnerDim(t *testing.T) {
	m, err := Linear(2)
	require.NoError(t, err)

	in := rawF32(t, tensor.Shape{2, 4}, func(i int) float32 { return float32(i) })
	shards, err := ShardToMesh(m, in, 1)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 2}, shards[0].Shape())
	assert.Equal(t, []float32{0, 1, 4, 5}, shards[0].AsFloat32())
	assert.Equal(t, []float32{2, 3, 6, 7}, shards[1].AsFloat32())
}

func TestShardUnevenRejected(t *testing.T) {
	m, err := Linear(3)
	require.NoError(t, err)

	in := rawF32(t, tensor.Shape{8, 6}, func(i int) float32 { return 0 })
	_, err = ShardToMesh(m, in, 0)
	assert.Error(t, err)
}

func TestReplicateGivesIndependentCopies(t *testing.T) {
	m, err := Linear(2)
	require.NoError(t, err)

	in := rawF32(t, tensor.Shape{4}, func(i int) float32 { return float32(i) })
	copies, err := ReplicateToMesh(m, in)
	require.NoError(t, err)
	require.Len(t, copies, 2)

	copies[0].AsFloat32()[0] = 99
	assert.Equal(t, float32(0), copies[1].AsFloat32()[0])
	assert.Equal(t, float32(0), in.AsFloat32()[0])
}

func TestConcatShapeMismatch(t *testing.T) {
	a := rawF32(t, tensor.Shape{2, 3}, func(i int) float32 { return 0 })
	b := rawF32(t, tensor.Shape{2, 4}, func(i int) float32 { return 0 })

	_, err := ConcatFromMesh([]*tensor.RawTensor{a, b}, 0)
	assert.Error(t, err)

	got, err := ConcatFromMesh([]*tensor.RawTensor{a, b}, 1)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 7}, got.Shape())
}

func TestDeviceProgramCache(t *testing.T) {
	d, err := NewDevice(0, tensor.BFloat16)
	require.NoError(t, err)
	defer d.Close()

	a := rawF32(t, tensor.Shape{2, 2}, func(i int) float32 { return float32(i) })

	d.Add(a, a)
	assert.Equal(t, 1, d.Compiles())
	assert.Equal(t, 0, d.CacheHits())

	d.Add(a, a)
	d.Add(a, a)
	assert.Equal(t, 1, d.Compiles())
	assert.Equal(t, 2, d.CacheHits())

	d.Mul(a, a)
	assert.Equal(t, 2, d.Compiles())
	assert.Equal(t, 2, d.ProgramCacheSize())
}

func TestFromHostQuantizes(t *testing.T) {
	d, err := NewDevice(0, tensor.BFloat16)
	require.NoError(t, err)
	defer d.Close()

	host := rawF32(t, tensor.Shape{2}, func(i int) float32 { return 1.0001 })
	dev, err := d.FromHost(host, tensor.DRAMInterleaved)
	require.NoError(t, err)

	assert.Equal(t, tensor.DRAM, dev.Placement())
	for _, v := range dev.AsFloat32() {
		assert.Equal(t, precision.RoundBFloat16(v), v)
		assert.NotEqual(t, float32(1.0001), v)
	}
}

func TestFromHostFloat32Passthrough(t *testing.T) {
	d, err := NewDevice(0, tensor.Float32)
	require.NoError(t, err)
	defer d.Close()

	host := rawF32(t, tensor.Shape{2}, func(i int) float32 { return 1.0001 })
	dev, err := d.FromHost(host, tensor.L1Sharded)
	require.NoError(t, err)

	assert.Equal(t, tensor.L1, dev.Placement())
	assert.Equal(t, float32(1.0001), dev.AsFloat32()[0])
}

func TestToHostPlacement(t *testing.T) {
	d, err := NewDevice(0, tensor.Float32)
	require.NoError(t, err)
	defer d.Close()

	host := rawF32(t, tensor.Shape{2}, func(i int) float32 { return 1 })
	dev, err := d.FromHost(host, tensor.DRAMInterleaved)
	require.NoError(t, err)

	back := d.ToHost(dev)
	assert.Equal(t, tensor.Host, back.Placement())
	assert.Equal(t, tensor.DRAM, dev.Placement())
}

func TestClosedDevicePanics(t *testing.T) {
	d, err := NewDevice(0, tensor.Float32)
	require.NoError(t, err)
	d.Close()

	a := rawF32(t, tensor.Shape{2}, func(i int) float32 { return 1 })
	assert.Panics(t, func() { d.Add(a, a) })
}

func TestNewDeviceRejectsNonStorageDType(t *testing.T) {
	_, err := NewDevice(0, tensor.Int32)
	assert.Error(t, err)
}

func TestOpenDevices(t *testing.T) {
	m, err := New(2, 2)
	require.NoError(t, err)

	devices, err := m.OpenDevices(tensor.BFloat16)
	require.NoError(t, err)
	require.Len(t, devices, 4)
	for i, d := range devices {
		assert.Equal(t, i, d.ID())
		d.Close()
	}
}
