// Package mesh models the logical device grid the harness shards work
// onto. Tensors are distributed with host-side mappers (shard along an
// axis, or replicate) and gathered back with a concat composer. Each
// grid slot is a virtual Device that executes compute through a
// reduced-precision backend and keeps program-cache dispatch counters.
//
// Collective communication between devices is out of scope; the mesh
// only describes how host tensors are split and rejoined.
package mesh

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/tensor"
)

// Mesh is a logical grid of devices.
type Mesh struct {
	Rows int
	Cols int
}

// New creates a rows x cols mesh.
func New(rows, cols int) (Mesh, error) {
	if rows < 1 || cols < 1 {
		return Mesh{}, fmt.Errorf("mesh: invalid grid %dx%d", rows, cols)
	}
	return Mesh{Rows: rows, Cols: cols}, nil
}

// Linear creates a 1 x n mesh.
func Linear(n int) (Mesh, error) {
	return New(1, n)
}

// NumDevices returns the number of grid slots.
func (m Mesh) NumDevices() int {
	return m.Rows * m.Cols
}

func (m Mesh) String() string {
	return fmt.Sprintf("%dx%d", m.Rows, m.Cols)
}

// OpenDevices creates one virtual device per grid slot, all using the
// given storage dtype.
func (m Mesh) OpenDevices(storage tensor.DataType) ([]*Device, error) {
	devices := make([]*Device, m.NumDevices())
	for i := range devices {
		d, err := NewDevice(i, storage)
		if err != nil {
			for _, open := range devices[:i] {
				open.Close()
			}
			return nil, err
		}
		devices[i] = d
	}
	return devices, nil
}

// ShardToMesh splits t into one shard per device along dim. The dim
// length must divide evenly by the device count. Each shard gets its
// own buffer.
func ShardToMesh(m Mesh, t *tensor.RawTensor, dim int) ([]*tensor.RawTensor, error) {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		return nil, fmt.Errorf("mesh: shard dim %d out of range for shape %v", dim, shape)
	}
	n := m.NumDevices()
	if shape[dim]%n != 0 {
		return nil, fmt.Errorf("mesh: dim %d length %d not divisible by %d devices", dim, shape[dim], n)
	}

	shardShape := shape.Clone()
	shardShape[dim] = shape[dim] / n

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	es := t.DType().Size()
	blockBytes := shardShape[dim] * inner * es
	rowBytes := shape[dim] * inner * es

	src := t.Data()
	shards := make([]*tensor.RawTensor, n)
	for i := 0; i < n; i++ {
		s, err := tensor.NewRawOn(shardShape, t.DType(), t.Placement())
		if err != nil {
			return nil, err
		}
		s.SetLayout(t.Layout())
		dst := s.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*blockBytes:(o+1)*blockBytes],
				src[o*rowBytes+i*blockBytes:o*rowBytes+(i+1)*blockBytes])
		}
		shards[i] = s
	}
	return shards, nil
}

// ReplicateToMesh gives every device its own full copy of t.
func ReplicateToMesh(m Mesh, t *tensor.RawTensor) ([]*tensor.RawTensor, error) {
	n := m.NumDevices()
	copies := make([]*tensor.RawTensor, n)
	for i := 0; i < n; i++ {
		c, err := tensor.NewRawOn(t.Shape(), t.DType(), t.Placement())
		if err != nil {
			return nil, err
		}
		c.SetLayout(t.Layout())
		copy(c.Data(), t.Data())
		copies[i] = c
	}
	return copies, nil
}

// ConcatFromMesh joins per-device shards back into one host tensor
// along dim. Shard shapes must agree on every other dim.
func ConcatFromMesh(parts []*tensor.RawTensor, dim int) (*tensor.RawTensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("mesh: no shards to concat")
	}
	first := parts[0].Shape()
	if dim < 0 || dim >= len(first) {
		return nil, fmt.Errorf("mesh: concat dim %d out of range for shape %v", dim, first)
	}
	total := 0
	for _, p := range parts {
		s := p.Shape()
		if len(s) != len(first) {
			return nil, fmt.Errorf("mesh: shard rank mismatch: %v vs %v", first, s)
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				return nil, fmt.Errorf("mesh: shard shape mismatch on dim %d: %v vs %v", d, first, s)
			}
		}
		if p.DType() != parts[0].DType() {
			return nil, fmt.Errorf("mesh: shard dtype mismatch: %s vs %s", parts[0].DType(), p.DType())
		}
		total += s[dim]
	}

	outShape := first.Clone()
	outShape[dim] = total
	out, err := tensor.NewRaw(outShape, parts[0].DType())
	if err != nil {
		return nil, err
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= first[d]
	}
	inner := 1
	for d := dim + 1; d < len(first); d++ {
		inner *= first[d]
	}
	es := parts[0].DType().Size()
	rowBytes := total * inner * es

	dst := out.Data()
	offset := 0
	for _, p := range parts {
		blockBytes := p.Shape()[dim] * inner * es
		src := p.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowBytes+offset:o*rowBytes+offset+blockBytes],
				src[o*blockBytes:(o+1)*blockBytes])
		}
		offset += blockBytes
	}
	return out, nil
}
