package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// tensorBuffer is a reference-counted shared buffer. Cloning a tensor
// only bumps the count; the harness releases device tensors explicitly
// once their comparison has been consumed.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

// RawTensor is the dtype-erased tensor representation used by backends,
// the comparator and the mesh mappers. Shape, strides, dtype, layout and
// placement travel with the buffer.
type RawTensor struct {
	buffer    *tensorBuffer
	shape     Shape
	stride    []int
	dtype     DataType
	layout    Layout
	placement Placement
	offset    int
}

// NewRaw creates a zero-filled RawTensor with the given shape and type
// on the host.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return NewRawOn(shape, dtype, Host)
}

// NewRawOn creates a zero-filled RawTensor with an explicit placement.
func NewRawOn(shape Shape, dtype DataType, placement Placement) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	byteSize := shape.NumElements() * dtype.Size()

	return &RawTensor{
		buffer:    newTensorBuffer(byteSize),
		shape:     shape.Clone(),
		stride:    shape.ComputeStrides(),
		dtype:     dtype,
		layout:    RowMajor,
		placement: placement,
		offset:    0,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Layout returns the tensor's memory layout.
func (r *RawTensor) Layout() Layout {
	return r.layout
}

// Placement returns where the tensor's buffer lives.
func (r *RawTensor) Placement() Placement {
	return r.placement
}

// SetLayout records the tensor's layout. Callers that reorder the
// buffer (tilize/untilize) are responsible for keeping this accurate.
func (r *RawTensor) SetLayout(l Layout) {
	r.layout = l
}

// SetPlacement records where the tensor's buffer lives.
func (r *RawTensor) SetPlacement(p Placement) {
	r.placement = p
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
func (r *RawTensor) Data() []byte {
	return r.buffer.data[r.offset:]
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsUint16 interprets the data as []uint16. Used for bfloat16 storage,
// which has no native Go element type.
// Panics if the tensor's dtype is not BFloat16.
func (r *RawTensor) AsUint16() []uint16 {
	if r.dtype != BFloat16 {
		panic(fmt.Sprintf("tensor dtype is %s, not bfloat16", r.dtype))
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8. Also used for float8 storage.
// Panics if the tensor's dtype is neither Uint8 nor Float8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 && r.dtype != Float8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8/float8", r.dtype))
	}
	return r.buffer.data[r.offset:]
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	if r.dtype != Bool {
		panic(fmt.Sprintf("tensor dtype is %s, not bool", r.dtype))
	}
	data := r.buffer.data[r.offset:]
	return unsafe.Slice((*bool)(unsafe.Pointer(&data[0])), r.NumElements())
}

// Clone creates a shallow copy sharing the underlying buffer with
// reference counting.
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer:    r.buffer,
		shape:     r.shape.Clone(),
		stride:    append([]int(nil), r.stride...),
		dtype:     r.dtype,
		layout:    r.layout,
		placement: r.placement,
		offset:    r.offset,
	}
}

// Release decrements the reference count and deallocates the buffer at
// zero. Device tensors are released by the harness once compared.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// Released reports whether the underlying buffer has been deallocated.
func (r *RawTensor) Released() bool {
	return r.buffer.refCount.Load() <= 0
}
