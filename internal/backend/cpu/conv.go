package cpu

import (
	"fmt"
	"math"

	"github.com/meshgold/meshgold/internal/parallel"
	"github.com/meshgold/meshgold/internal/tensor"
)

// Conv2D performs 2D convolution.
// Input: [N, C, H, W], kernel: [outC, C, kH, kW].
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input and kernel, got %v, %v", inShape, kShape))
	}
	if inShape[1] != kShape[1] {
		panic(fmt.Sprintf("conv2d: channel mismatch: input %v, kernel %v", inShape, kShape))
	}
	if stride < 1 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	requireFloat32("conv2d", input, kernel)

	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kh, kw := kShape[0], kShape[2], kShape[3]

	outH := (h+2*padding-kh)/stride + 1
	outW := (w+2*padding-kw)/stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %dx%d does not fit input %dx%d with stride %d padding %d",
			kh, kw, h, w, stride, padding))
	}

	result, err := tensor.NewRaw(tensor.Shape{n, outC, outH, outW}, tensor.Float32)
	if err != nil {
		panic(fmt.Sprintf("conv2d: %v", err))
	}

	in, k, out := input.AsFloat32(), kernel.AsFloat32(), result.AsFloat32()

	parallel.For2D(n, outC, func(b, oc int) {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				sum := float32(0)
				for ic := 0; ic < c; ic++ {
					for ky := 0; ky < kh; ky++ {
						iy := oy*stride + ky - padding
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < kw; kx++ {
							ix := ox*stride + kx - padding
							if ix < 0 || ix >= w {
								continue
							}
							sum += in[((b*c+ic)*h+iy)*w+ix] * k[((oc*c+ic)*kh+ky)*kw+kx]
						}
					}
				}
				out[((b*outC+oc)*outH+oy)*outW+ox] = sum
			}
		}
	})
	return result
}

// MaxPool2D performs 2D max pooling over [N, C, H, W].
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inShape := input.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input, got %v", inShape))
	}
	if kernelSize < 1 || stride < 1 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel %d / stride %d", kernelSize, stride))
	}
	requireFloat32("maxpool2d", input)

	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	outH := (h-kernelSize)/stride + 1
	outW := (w-kernelSize)/stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("maxpool2d: window %d does not fit input %dx%d with stride %d",
			kernelSize, h, w, stride))
	}

	result, err := tensor.NewRaw(tensor.Shape{n, c, outH, outW}, tensor.Float32)
	if err != nil {
		panic(fmt.Sprintf("maxpool2d: %v", err))
	}

	in, out := input.AsFloat32(), result.AsFloat32()
	parallel.For2D(n, c, func(b, ch int) {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				best := float32(math.Inf(-1))
				for ky := 0; ky < kernelSize; ky++ {
					for kx := 0; kx < kernelSize; kx++ {
						v := in[((b*c+ch)*h+oy*stride+ky)*w+ox*stride+kx]
						if v > best {
							best = v
						}
					}
				}
				out[((b*c+ch)*outH+oy)*outW+ox] = best
			}
		}
	})
	return result
}
