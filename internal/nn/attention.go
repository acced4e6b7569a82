// Package nn provides the small reference fixtures the validation
// harness runs on both the golden and device paths: scaled dot-product
// attention with a padded KV cache, and a conv/pool stack. These are
// fixtures, not model implementations; weights are generated, never
// loaded.
package nn

import (
	"math"

	"github.com/meshgold/meshgold/internal/tensor"
)

// ScaledDotProductAttention computes softmax(QK^T * scale) @ V.
//
// Shapes:
//   - query: [batch, heads, seq_q, head_dim]
//   - key, value: [batch, heads, seq_k, head_dim]
//   - mask: additive mask broadcastable to [batch, heads, seq_q, seq_k],
//     -inf for masked positions, or nil
//   - scale: 0 for the default 1/sqrt(head_dim)
//
// Returns the attended values [batch, heads, seq_q, head_dim] and the
// attention weights [batch, heads, seq_q, seq_k].
func ScaledDotProductAttention[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	validateAttentionInputs(query, key, value)

	if scale == 0 {
		scale = float32(1.0 / math.Sqrt(float64(query.Shape()[3])))
	}

	kT := key.Transpose(0, 1, 3, 2)
	scores := query.BatchMatMul(kT).MulScalar(scale)
	if mask != nil {
		scores = scores.Add(mask)
	}
	weights := scores.Softmax(-1)
	output := weights.BatchMatMul(value)

	return output, weights
}

func validateAttentionInputs[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
) {
	if len(query.Shape()) != 4 || len(key.Shape()) != 4 || len(value.Shape()) != 4 {
		panic("ScaledDotProductAttention: inputs must be 4D [batch, heads, seq, head_dim]")
	}
	if query.Shape()[3] != key.Shape()[3] {
		panic("ScaledDotProductAttention: query and key must have the same head_dim")
	}
	if key.Shape()[2] != value.Shape()[2] {
		panic("ScaledDotProductAttention: key and value must have the same seq length")
	}
}

// CausalMask builds an additive autoregressive mask of shape
// [1, 1, seqLen, seqLen]: zero on and below the diagonal, -inf above.
func CausalMask[B tensor.Backend](seqLen int, backend B) *tensor.Tensor[float32, B] {
	mask := tensor.Zeros[float32](tensor.Shape{1, 1, seqLen, seqLen}, backend)

	negInf := float32(math.Inf(-1))
	data := mask.Data()
	for i := 0; i < seqLen; i++ {
		for j := i + 1; j < seqLen; j++ {
			data[i*seqLen+j] = negInf
		}
	}
	return mask
}
