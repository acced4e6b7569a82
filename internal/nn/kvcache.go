package nn

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/tensor"
	"github.com/meshgold/meshgold/internal/tile"
)

// PaddedKVCache holds attention keys and values in preallocated buffers
// whose sequence axis is padded up to a tile multiple, the way a device
// allocates cache memory. Prefill fills the cache in bulk from position
// zero; decode appends one position at a time. Readers choose between
// the full padded tensors (what comes back from a device) and the
// populated slice (what the reference path compares against).
type PaddedKVCache[B tensor.Backend] struct {
	k      *tensor.Tensor[float32, B] // [batch, heads, paddedLen, head_dim]
	v      *tensor.Tensor[float32, B]
	length int
	maxLen int
}

// NewPaddedKVCache allocates a zeroed cache for up to maxSeqLen
// positions. The storage sequence axis is padded to a tile multiple.
func NewPaddedKVCache[B tensor.Backend](batch, heads, maxSeqLen, headDim int, backend B) *PaddedKVCache[B] {
	if batch < 1 || heads < 1 || maxSeqLen < 1 || headDim < 1 {
		panic(fmt.Sprintf("PaddedKVCache: invalid dims batch=%d heads=%d maxSeqLen=%d headDim=%d",
			batch, heads, maxSeqLen, headDim))
	}
	padded := tile.PadDim(maxSeqLen)
	shape := tensor.Shape{batch, heads, padded, headDim}
	return &PaddedKVCache[B]{
		k:      tensor.Zeros[float32](shape, backend),
		v:      tensor.Zeros[float32](shape, backend),
		maxLen: maxSeqLen,
	}
}

// Fill bulk-writes keys and values starting at position zero.
// The cache must be empty. key/value: [batch, heads, seq, head_dim].
func (c *PaddedKVCache[B]) Fill(key, value *tensor.Tensor[float32, B]) {
	if c.length != 0 {
		panic(fmt.Sprintf("PaddedKVCache: fill on non-empty cache (length=%d)", c.length))
	}
	seq := key.Shape()[2]
	if seq > c.maxLen {
		panic(fmt.Sprintf("PaddedKVCache: fill of %d positions exceeds capacity %d", seq, c.maxLen))
	}
	c.writeAt(key, value, 0)
	c.length = seq
}

// Append writes keys and values at the current end of the cache.
// key/value: [batch, heads, seq, head_dim], usually seq=1 for decode.
func (c *PaddedKVCache[B]) Append(key, value *tensor.Tensor[float32, B]) {
	seq := key.Shape()[2]
	if c.length+seq > c.maxLen {
		panic(fmt.Sprintf("PaddedKVCache: overflow (length=%d + new=%d > max=%d)",
			c.length, seq, c.maxLen))
	}
	c.writeAt(key, value, c.length)
	c.length += seq
}

func (c *PaddedKVCache[B]) writeAt(key, value *tensor.Tensor[float32, B], pos int) {
	shape := c.k.Shape()
	batch, heads, paddedLen, headDim := shape[0], shape[1], shape[2], shape[3]
	ks := key.Shape()
	if len(ks) != 4 || ks[0] != batch || ks[1] != heads || ks[3] != headDim {
		panic(fmt.Sprintf("PaddedKVCache: key shape %v does not match cache %v", ks, shape))
	}
	if !key.Shape().Equal(value.Shape()) {
		panic(fmt.Sprintf("PaddedKVCache: key %v and value %v shapes differ", ks, value.Shape()))
	}
	seq := ks[2]

	dstK, dstV := c.k.Data(), c.v.Data()
	srcK, srcV := key.Data(), value.Data()
	for b := 0; b < batch; b++ {
		for h := 0; h < heads; h++ {
			plane := (b*heads + h) * paddedLen * headDim
			srcPlane := (b*heads + h) * seq * headDim
			for r := 0; r < seq; r++ {
				dstOff := plane + (pos+r)*headDim
				srcOff := srcPlane + r*headDim
				copy(dstK[dstOff:dstOff+headDim], srcK[srcOff:srcOff+headDim])
				copy(dstV[dstOff:dstOff+headDim], srcV[srcOff:srcOff+headDim])
			}
		}
	}
}

// Padded returns the full padded key and value tensors, including the
// unpopulated tail.
func (c *PaddedKVCache[B]) Padded() (key, value *tensor.Tensor[float32, B]) {
	return c.k, c.v
}

// Populated returns the cache narrowed to the populated length.
// Panics on an empty cache.
func (c *PaddedKVCache[B]) Populated() (key, value *tensor.Tensor[float32, B]) {
	if c.length == 0 {
		panic("PaddedKVCache: cannot read from empty cache")
	}
	return c.k.Narrow(2, 0, c.length), c.v.Narrow(2, 0, c.length)
}

// Len returns the populated sequence length.
func (c *PaddedKVCache[B]) Len() int {
	return c.length
}

// Capacity returns the logical capacity in positions.
func (c *PaddedKVCache[B]) Capacity() int {
	return c.maxLen
}

// PaddedLen returns the storage length of the sequence axis.
func (c *PaddedKVCache[B]) PaddedLen() int {
	return c.k.Shape()[2]
}

// Reset clears the cache for a new sequence. Buffers are reused.
func (c *PaddedKVCache[B]) Reset() {
	clearF32(c.k.Data())
	clearF32(c.v.Data())
	c.length = 0
}

func clearF32(s []float32) {
	for i := range s {
		s[i] = 0
	}
}

// AttentionWithCache updates the cache with the new keys and values
// (bulk fill when empty, append otherwise), then runs attention of the
// query against the populated cache.
func AttentionWithCache[B tensor.Backend](
	query, key, value *tensor.Tensor[float32, B],
	cache *PaddedKVCache[B],
	mask *tensor.Tensor[float32, B],
	scale float32,
) *tensor.Tensor[float32, B] {
	if cache.Len() == 0 {
		cache.Fill(key, value)
	} else {
		cache.Append(key, value)
	}
	keys, values := cache.Populated()
	out, _ := ScaledDotProductAttention(query, keys, values, mask, scale)
	return out
}
