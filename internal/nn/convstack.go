package nn

import (
	"fmt"
	"math/rand"

	"github.com/meshgold/meshgold/internal/tensor"
)

// ConvStack is the second validation fixture: two conv+pool stages over
// NCHW input. Weights are drawn from a seeded source so the golden and
// device paths share the same kernels.
type ConvStack[B tensor.Backend] struct {
	kernel1 *tensor.Tensor[float32, B] // [midChannels, inChannels, 3, 3]
	kernel2 *tensor.Tensor[float32, B] // [outChannels, midChannels, 3, 3]
}

// NewConvStack builds the fixture with normally distributed kernels.
func NewConvStack[B tensor.Backend](inChannels, midChannels, outChannels int, rng *rand.Rand, backend B) *ConvStack[B] {
	if inChannels < 1 || midChannels < 1 || outChannels < 1 {
		panic(fmt.Sprintf("ConvStack: invalid channels %d/%d/%d", inChannels, midChannels, outChannels))
	}
	k1 := tensor.Randn[float32](tensor.Shape{midChannels, inChannels, 3, 3}, rng, backend)
	k2 := tensor.Randn[float32](tensor.Shape{outChannels, midChannels, 3, 3}, rng, backend)
	// Scale down so two stages of 3x3 sums stay in a well-conditioned range.
	return &ConvStack[B]{
		kernel1: k1.MulScalar(0.1),
		kernel2: k2.MulScalar(0.1),
	}
}

// Weights returns the two kernels, e.g. for transfer onto a device.
func (s *ConvStack[B]) Weights() (k1, k2 *tensor.Tensor[float32, B]) {
	return s.kernel1, s.kernel2
}

// Forward runs conv(3x3, pad 1) -> maxpool(2) twice.
// Input: [batch, inChannels, h, w] with h and w divisible by 4.
// Output: [batch, outChannels, h/4, w/4].
func (s *ConvStack[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return ForwardWith(x, s.kernel1, s.kernel2)
}

// ForwardWith runs the same two stages with explicit kernels, e.g. the
// device copies of the fixture's weights.
func ForwardWith[B tensor.Backend](x, kernel1, kernel2 *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	y := x.Conv2D(kernel1, 1, 1).MaxPool2D(2, 2)
	return y.Conv2D(kernel2, 1, 1).MaxPool2D(2, 2)
}
