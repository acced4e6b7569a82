// Package tensor is the public API over the internal tensor
// implementation: shapes, dtypes, layouts, the dtype-erased RawTensor
// and the generic typed Tensor.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor

import (
	"math/rand"

	"github.com/meshgold/meshgold/internal/tensor"
)

// DType is the constraint for tensor element types.
type DType = tensor.DType

// DataType identifies a tensor's element type at runtime.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	BFloat16 DataType = tensor.BFloat16
	Float8   DataType = tensor.Float8
	Int32    DataType = tensor.Int32
	Uint8    DataType = tensor.Uint8
	Bool     DataType = tensor.Bool
)

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// Layout describes the in-memory element order.
type Layout = tensor.Layout

// Layout constants.
const (
	RowMajor Layout = tensor.RowMajor
	Tiled    Layout = tensor.Tiled
)

// Placement identifies where a tensor's buffer lives.
type Placement = tensor.Placement

// Placement constants.
const (
	Host Placement = tensor.Host
	DRAM Placement = tensor.DRAM
	L1   Placement = tensor.L1
)

// MemoryConfig describes how a device tensor is stored.
type MemoryConfig = tensor.MemoryConfig

// Common memory configurations.
var (
	DRAMInterleaved = tensor.DRAMInterleaved
	L1Sharded       = tensor.L1Sharded
)

// RawTensor is the dtype-erased tensor representation.
type RawTensor = tensor.RawTensor

// Backend is the compute interface tensors dispatch through.
type Backend = tensor.Backend

// Tensor is a generic tensor with element type T computed by backend B.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// New creates a Tensor from a RawTensor and backend.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw creates a zero-filled RawTensor on the host.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// NewRawOn creates a zero-filled RawTensor with an explicit placement.
func NewRawOn(shape Shape, dtype DataType, placement Placement) (*RawTensor, error) {
	return tensor.NewRawOn(shape, dtype, placement)
}

// FromSlice creates a tensor from a Go slice.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Randn creates a tensor with standard normal values from rng.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, rng, b)
}

// Arange creates a 1D int32 tensor with values [start, end).
func Arange[B Backend](start, end int32, b B) *Tensor[int32, B] {
	return tensor.Arange[B](start, end, b)
}

// Cat concatenates tensors along a dimension.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat[T, B](tensors, dim)
}

// BroadcastShapes computes the broadcast result shape of two shapes,
// reporting whether broadcasting is required.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
