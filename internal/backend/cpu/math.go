package cpu

import (
	"fmt"
	"math"

	"github.com/meshgold/meshgold/internal/tensor"
)

// Exp applies the exponential element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("exp", x, math.Exp)
}

// Sqrt applies the square root element-wise.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sqrt", x, math.Sqrt)
}

// Softmax applies softmax along dim. Negative dims count from the end.
// Max-subtraction keeps the exponentials stable.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("softmax: invalid dim %d for %dD tensor", dim, ndim))
	}
	requireFloat32("softmax", x)

	result, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		panic(fmt.Sprintf("softmax: %v", err))
	}

	// View the tensor as [outer, dimSize, inner].
	dimSize := shape[dim]
	outer, inner := 1, 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < ndim; d++ {
		inner *= shape[d]
	}

	in, out := x.AsFloat32(), result.AsFloat32()
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*dimSize*inner + i

			maxVal := float32(math.Inf(-1))
			for d := 0; d < dimSize; d++ {
				if v := in[base+d*inner]; v > maxVal {
					maxVal = v
				}
			}

			sum := float32(0)
			for d := 0; d < dimSize; d++ {
				e := float32(math.Exp(float64(in[base+d*inner] - maxVal)))
				out[base+d*inner] = e
				sum += e
			}

			for d := 0; d < dimSize; d++ {
				out[base+d*inner] /= sum
			}
		}
	}
	return result
}
