package cpu

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/parallel"
	"github.com/meshgold/meshgold/internal/tensor"
)

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
// Rows are distributed over the worker pool.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v @ %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}
	requireFloat32("matmul", a, b)

	m, k, n := aShape[0], aShape[1], bShape[1]
	result, err := tensor.NewRaw(tensor.Shape{m, n}, tensor.Float32)
	if err != nil {
		panic(fmt.Sprintf("matmul: %v", err))
	}

	matmulF32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	return result
}

// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != len(bShape) || (len(aShape) != 3 && len(aShape) != 4) {
		panic(fmt.Sprintf("batchmatmul: expected matching 3D/4D tensors, got %v @ %v", aShape, bShape))
	}
	requireFloat32("batchmatmul", a, b)

	ndim := len(aShape)
	for d := 0; d < ndim-2; d++ {
		if aShape[d] != bShape[d] {
			panic(fmt.Sprintf("batchmatmul: batch dimensions mismatch: %v @ %v", aShape, bShape))
		}
	}

	m, k, n := aShape[ndim-2], aShape[ndim-1], bShape[ndim-1]
	if k != bShape[ndim-2] {
		panic(fmt.Sprintf("batchmatmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}

	batches := 1
	for d := 0; d < ndim-2; d++ {
		batches *= aShape[d]
	}

	outShape := aShape.Clone()
	outShape[ndim-1] = n
	result, err := tensor.NewRaw(outShape, tensor.Float32)
	if err != nil {
		panic(fmt.Sprintf("batchmatmul: %v", err))
	}

	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	for batch := 0; batch < batches; batch++ {
		matmulF32(
			outData[batch*m*n:(batch+1)*m*n],
			aData[batch*m*k:(batch+1)*m*k],
			bData[batch*k*n:(batch+1)*k*n],
			m, k, n,
		)
	}
	return result
}

// matmulF32 computes out = a @ b for row-major float32 matrices.
// The k-inner loop runs over contiguous rows of b for cache locality.
func matmulF32(out, a, b []float32, m, k, n int) {
	parallel.For(m, func(i int) {
		row := out[i*n : (i+1)*n]
		for j := range row {
			row[j] = 0
		}
		for p := 0; p < k; p++ {
			aip := a[i*k+p]
			if aip == 0 {
				continue
			}
			bRow := b[p*n : (p+1)*n]
			for j, bv := range bRow {
				row[j] += aip * bv
			}
		}
	})
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: only float32 supported on cpu, got %s", op, t.DType()))
		}
	}
}
