package precision

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/tensor"
)

// Backend decorates another backend and rounds every compute result
// through a reduced-precision storage dtype, emulating an accelerator
// that stores intermediates in bfloat16 or float8. Pure data-movement
// ops (reshape, transpose, cat, narrow, squeeze) pass through
// unrounded: they would not change values on hardware either.
//
// The decorator computes in float32 and rounds at the store, which is
// how the hardware's tile registers behave.
type Backend struct {
	inner   tensor.Backend
	storage tensor.DataType
}

// Wrap creates a reduced-precision backend over inner.
// storage must be Float32 (no-op), BFloat16 or Float8.
func Wrap(inner tensor.Backend, storage tensor.DataType) *Backend {
	switch storage {
	case tensor.Float32, tensor.BFloat16, tensor.Float8:
	default:
		panic(fmt.Sprintf("precision: %s is not a storage dtype", storage))
	}
	return &Backend{inner: inner, storage: storage}
}

// Storage returns the storage dtype results are rounded through.
func (p *Backend) Storage() tensor.DataType {
	return p.storage
}

// Name returns the backend name.
func (p *Backend) Name() string {
	return fmt.Sprintf("%s+%s", p.inner.Name(), p.storage)
}

// Placement returns the inner backend's placement.
func (p *Backend) Placement() tensor.Placement {
	return p.inner.Placement()
}

// round rounds a float32 tensor's values through the storage dtype
// in place of precision, keeping the buffer float32.
func (p *Backend) round(r *tensor.RawTensor) *tensor.RawTensor {
	if p.storage == tensor.Float32 || r.DType() != tensor.Float32 {
		return r
	}
	data := r.AsFloat32()
	switch p.storage {
	case tensor.BFloat16:
		for i, v := range data {
			data[i] = RoundBFloat16(v)
		}
	case tensor.Float8:
		for i, v := range data {
			data[i] = RoundFloat8(v)
		}
	}
	return r
}

// Compute ops: inner result rounded through storage.

func (p *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.Add(a, b))
}

func (p *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.Sub(a, b))
}

func (p *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.Mul(a, b))
}

func (p *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.Div(a, b))
}

func (p *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.MatMul(a, b))
}

func (p *Backend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.BatchMatMul(a, b))
}

func (p *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return p.round(p.inner.Conv2D(input, kernel, stride, padding))
}

func (p *Backend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	return p.round(p.inner.MaxPool2D(input, kernelSize, stride))
}

func (p *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return p.round(p.inner.MulScalar(x, scalar))
}

func (p *Backend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return p.round(p.inner.AddScalar(x, scalar))
}

func (p *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.Exp(x))
}

func (p *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return p.round(p.inner.Sqrt(x))
}

func (p *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return p.round(p.inner.Softmax(x, dim))
}

func (p *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return p.round(p.inner.SumDim(x, dim, keepDim))
}

func (p *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return p.round(p.inner.MeanDim(x, dim, keepDim))
}

func (p *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	return p.round(p.inner.Cast(x, dtype))
}

// Data-movement ops: pass through.

func (p *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return p.inner.Reshape(t, newShape)
}

func (p *Backend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	return p.inner.Transpose(t, axes...)
}

func (p *Backend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return p.inner.Unsqueeze(x, dim)
}

func (p *Backend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return p.inner.Squeeze(x, dim)
}

func (p *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	return p.inner.Cat(tensors, dim)
}

func (p *Backend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	return p.inner.Narrow(x, dim, start, length)
}
