package mesh

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/backend/cpu"
	"github.com/meshgold/meshgold/internal/precision"
	"github.com/meshgold/meshgold/internal/tensor"
)

// Device is one virtual grid slot. It implements tensor.Backend by
// delegating to a reduced-precision CPU backend and counting dispatches
// per op key the way a program cache would: the first dispatch of a key
// is a compile, later ones are cache hits. Execution is synchronous
// in-process, so Synchronize is a bookkeeping barrier rather than a
// real wait.
type Device struct {
	id       int
	storage  tensor.DataType
	inner    *precision.Backend
	programs map[string]int
	compiles int
	hits     int
	closed   bool
}

// NewDevice opens a virtual device with the given storage dtype.
// storage must be Float32, BFloat16 or Float8.
func NewDevice(id int, storage tensor.DataType) (*Device, error) {
	switch storage {
	case tensor.Float32, tensor.BFloat16, tensor.Float8:
	default:
		return nil, fmt.Errorf("mesh: %s is not a device storage dtype", storage)
	}
	return &Device{
		id:       id,
		storage:  storage,
		inner:    precision.Wrap(cpu.New(), storage),
		programs: make(map[string]int),
	}, nil
}

// ID returns the device's slot index.
func (d *Device) ID() int {
	return d.id
}

// Storage returns the device's storage dtype.
func (d *Device) Storage() tensor.DataType {
	return d.storage
}

// Name returns the backend name.
func (d *Device) Name() string {
	return fmt.Sprintf("device%d(%s)", d.id, d.storage)
}

// Placement reports where this backend's tensors live.
func (d *Device) Placement() tensor.Placement {
	return tensor.DRAM
}

// Compiles returns how many distinct op keys have been dispatched.
func (d *Device) Compiles() int {
	return d.compiles
}

// CacheHits returns how many dispatches reused a compiled program.
func (d *Device) CacheHits() int {
	return d.hits
}

// ProgramCacheSize returns the number of cached program entries.
func (d *Device) ProgramCacheSize() int {
	return len(d.programs)
}

// Synchronize blocks until all issued work has completed. The emulated
// device executes eagerly, so there is never outstanding work; the call
// exists so harness code reads like the real dispatch flow.
func (d *Device) Synchronize() {}

// Close releases the device. Further dispatches panic.
func (d *Device) Close() {
	d.closed = true
	d.programs = nil
}

func (d *Device) record(op string) {
	if d.closed {
		panic(fmt.Sprintf("mesh: dispatch %q on closed device %d", op, d.id))
	}
	if d.programs[op] == 0 {
		d.compiles++
	} else {
		d.hits++
	}
	d.programs[op]++
}

// FromHost moves a host tensor onto the device: values are rounded
// through the storage dtype (the transfer quantization) and the result
// is placed in the requested memory tier. The buffer stays float32 so
// compute kernels can consume it directly.
func (d *Device) FromHost(t *tensor.RawTensor, cfg tensor.MemoryConfig) (*tensor.RawTensor, error) {
	if t.DType() != tensor.Float32 {
		return nil, fmt.Errorf("mesh: from host: expected float32, got %s", t.DType())
	}
	packed, err := precision.ToStorage(t, d.storage)
	if err != nil {
		return nil, err
	}
	out, err := precision.FromStorage(packed)
	packed.Release()
	if err != nil {
		return nil, err
	}
	out.SetPlacement(cfg.Placement)
	return out, nil
}

// ToHost copies a device tensor back to host placement.
func (d *Device) ToHost(t *tensor.RawTensor) *tensor.RawTensor {
	out := t.Clone()
	out.SetPlacement(tensor.Host)
	return out
}

// tensor.Backend: every op records a program-cache dispatch, then
// delegates to the reduced-precision backend.

func (d *Device) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	d.record("add")
	return d.inner.Add(a, b)
}

func (d *Device) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	d.record("sub")
	return d.inner.Sub(a, b)
}

func (d *Device) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	d.record("mul")
	return d.inner.Mul(a, b)
}

func (d *Device) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	d.record("div")
	return d.inner.Div(a, b)
}

func (d *Device) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	d.record("matmul")
	return d.inner.MatMul(a, b)
}

func (d *Device) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	d.record("batch_matmul")
	return d.inner.BatchMatMul(a, b)
}

func (d *Device) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	d.record("conv2d")
	return d.inner.Conv2D(input, kernel, stride, padding)
}

func (d *Device) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	d.record("max_pool2d")
	return d.inner.MaxPool2D(input, kernelSize, stride)
}

func (d *Device) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	d.record("mul_scalar")
	return d.inner.MulScalar(x, scalar)
}

func (d *Device) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	d.record("add_scalar")
	return d.inner.AddScalar(x, scalar)
}

func (d *Device) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	d.record("exp")
	return d.inner.Exp(x)
}

func (d *Device) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	d.record("sqrt")
	return d.inner.Sqrt(x)
}

func (d *Device) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	d.record("softmax")
	return d.inner.Softmax(x, dim)
}

func (d *Device) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	d.record("sum_dim")
	return d.inner.SumDim(x, dim, keepDim)
}

func (d *Device) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	d.record("mean_dim")
	return d.inner.MeanDim(x, dim, keepDim)
}

func (d *Device) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	d.record("cast")
	return d.inner.Cast(x, dtype)
}

func (d *Device) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	d.record("reshape")
	return d.inner.Reshape(t, newShape)
}

func (d *Device) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	d.record("transpose")
	return d.inner.Transpose(t, axes...)
}

func (d *Device) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	d.record("unsqueeze")
	return d.inner.Unsqueeze(x, dim)
}

func (d *Device) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	d.record("squeeze")
	return d.inner.Squeeze(x, dim)
}

func (d *Device) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	d.record("cat")
	return d.inner.Cat(tensors, dim)
}

func (d *Device) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	d.record("narrow")
	return d.inner.Narrow(x, dim, start, length)
}
