// Package mesh exposes the logical device grid, its host-side
// shard/replicate mappers and concat composer, and the virtual Device.
package mesh

import (
	"github.com/meshgold/meshgold/internal/mesh"
	"github.com/meshgold/meshgold/internal/tensor"
)

// Mesh is a logical grid of devices.
type Mesh = mesh.Mesh

// Device is one virtual grid slot.
type Device = mesh.Device

// New creates a rows x cols mesh.
func New(rows, cols int) (Mesh, error) {
	return mesh.New(rows, cols)
}

// Linear creates a 1 x n mesh.
func Linear(n int) (Mesh, error) {
	return mesh.Linear(n)
}

// NewDevice opens a virtual device with the given storage dtype.
func NewDevice(id int, storage tensor.DataType) (*Device, error) {
	return mesh.NewDevice(id, storage)
}

// ShardToMesh splits t into one shard per device along dim.
func ShardToMesh(m Mesh, t *tensor.RawTensor, dim int) ([]*tensor.RawTensor, error) {
	return mesh.ShardToMesh(m, t, dim)
}

// ReplicateToMesh gives every device its own full copy of t.
func ReplicateToMesh(m Mesh, t *tensor.RawTensor) ([]*tensor.RawTensor, error) {
	return mesh.ReplicateToMesh(m, t)
}

// ConcatFromMesh joins per-device shards back along dim.
func ConcatFromMesh(parts []*tensor.RawTensor, dim int) (*tensor.RawTensor, error) {
	return mesh.ConcatFromMesh(parts, dim)
}
