// Package cpu implements the host reference backend. It is the golden
// path of the harness: plain Go kernels in float32/float64, with the
// larger kernels parallelized over the worker pool.
package cpu

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/tensor"
)

// CPUBackend implements tensor.Backend on the host.
type CPUBackend struct{}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "cpu"
}

// Placement returns the memory tier this backend computes in.
func (cpu *CPUBackend) Placement() tensor.Placement {
	return tensor.Host
}

// Add performs element-wise addition with broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, func(x, y float64) float64 { return x / y })
}

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := scalarToFloat64(scalar)
	return cpu.unaryOp("mul_scalar", x, func(v float64) float64 { return v * s })
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := scalarToFloat64(scalar)
	return cpu.unaryOp("add_scalar", x, func(v float64) float64 { return v + s })
}

// binaryOp applies op element-wise with broadcasting. Fast path for
// equal shapes; the broadcast path walks output indices.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, op func(x, y float64) float64) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType())
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	if !needsBroadcast {
		getA, getB := reader(a), reader(b)
		set := writer(result)
		for i := 0; i < result.NumElements(); i++ {
			set(i, op(getA(i), getB(i)))
		}
		return result
	}

	applyBroadcast(result, a, b, outShape, op)
	return result
}

// unaryOp applies op element-wise.
func (cpu *CPUBackend) unaryOp(name string, x *tensor.RawTensor, op func(v float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	get := reader(x)
	set := writer(result)
	for i := 0; i < x.NumElements(); i++ {
		set(i, op(get(i)))
	}
	return result
}

// applyBroadcast walks the output index space, mapping each output
// coordinate back into a and b with size-1 dims pinned at 0.
func applyBroadcast(out, a, b *tensor.RawTensor, outShape tensor.Shape, op func(x, y float64) float64) {
	getA, getB := reader(a), reader(b)
	set := writer(out)

	ndim := len(outShape)
	outStrides := outShape.ComputeStrides()
	aShape, bShape := a.Shape(), b.Shape()
	aStrides, bStrides := aShape.ComputeStrides(), bShape.ComputeStrides()

	n := outShape.NumElements()
	for flat := 0; flat < n; flat++ {
		rem := flat
		aIdx, bIdx := 0, 0
		for d := 0; d < ndim; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]

			if ad := d - (ndim - len(aShape)); ad >= 0 && aShape[ad] > 1 {
				aIdx += coord * aStrides[ad]
			}
			if bd := d - (ndim - len(bShape)); bd >= 0 && bShape[bd] > 1 {
				bIdx += coord * bStrides[bd]
			}
		}
		set(flat, op(getA(aIdx), getB(bIdx)))
	}
}

// reader returns an element accessor converting to float64.
// Only the host float dtypes are computable on this backend.
func reader(t *tensor.RawTensor) func(i int) float64 {
	switch t.DType() {
	case tensor.Float32:
		data := t.AsFloat32()
		return func(i int) float64 { return float64(data[i]) }
	case tensor.Float64:
		data := t.AsFloat64()
		return func(i int) float64 { return data[i] }
	case tensor.Int32:
		data := t.AsInt32()
		return func(i int) float64 { return float64(data[i]) }
	default:
		panic(fmt.Sprintf("cpu: cannot compute on dtype %s", t.DType()))
	}
}

// writer returns an element setter converting from float64.
func writer(t *tensor.RawTensor) func(i int, v float64) {
	switch t.DType() {
	case tensor.Float32:
		data := t.AsFloat32()
		return func(i int, v float64) { data[i] = float32(v) }
	case tensor.Float64:
		data := t.AsFloat64()
		return func(i int, v float64) { data[i] = v }
	case tensor.Int32:
		data := t.AsInt32()
		return func(i int, v float64) { data[i] = int32(v) }
	default:
		panic(fmt.Sprintf("cpu: cannot write dtype %s", t.DType()))
	}
}

func scalarToFloat64(scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	case int32:
		return float64(s)
	default:
		panic(fmt.Sprintf("cpu: unsupported scalar type %T", scalar))
	}
}
