// Package harness orchestrates golden-vs-device validation runs: it
// generates a seeded input, computes a reference result on the host
// backend, maps the same input onto the device mesh per the case's
// shard strategy, executes the device path through reduced-precision
// virtual devices, normalizes the device outputs back to the reference
// shape, and gates the correlation scores against per-case thresholds.
//
// A failing comparison is a result, not an error: Run returns a Report
// and reserves errors for malformed cases and execution problems.
package harness

import (
	"fmt"
	"strings"

	"github.com/meshgold/meshgold/internal/compare"
	"github.com/meshgold/meshgold/internal/mesh"
	"github.com/meshgold/meshgold/internal/tensor"
	"github.com/meshgold/meshgold/internal/tile"
)

// Mode selects the autoregressive execution mode of an attention case.
type Mode int

const (
	// ModePrefill processes the whole prompt in one bulk-parallel pass.
	ModePrefill Mode = iota
	// ModeDecode generates one position against a populated KV cache.
	ModeDecode
)

// String returns the mode's wire name.
func (m Mode) String() string {
	switch m {
	case ModePrefill:
		return "prefill"
	case ModeDecode:
		return "decode"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name. Anything other than the two
// recognized modes is rejected.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "prefill":
		return ModePrefill, nil
	case "decode":
		return ModeDecode, nil
	default:
		return 0, fmt.Errorf("harness: unsupported mode %q (want prefill or decode)", s)
	}
}

// Case configures one attention validation scenario.
type Case struct {
	Name string
	Mode Mode

	Batch      int
	Heads      int
	SeqLen     int // query length: the prompt length in prefill, 1 in decode
	KVCacheLen int // populated history before the run; 0 in prefill
	MaxSeqLen  int // cache capacity; 0 means KVCacheLen+SeqLen
	HeadDim    int

	Storage tensor.DataType
	Memory  tensor.MemoryConfig
	Mesh    mesh.Mesh

	// Threshold gates the main output; KVThreshold gates the K and V
	// cache comparisons. Both are configuration inputs, not derived.
	Threshold   float64
	KVThreshold float64

	Seed int64
}

func (c *Case) maxSeqLen() int {
	if c.MaxSeqLen > 0 {
		return c.MaxSeqLen
	}
	return c.KVCacheLen + c.SeqLen
}

// Validate enforces the case preconditions. Violations are terminal for
// the case.
func (c *Case) Validate() error {
	switch c.Mode {
	case ModePrefill, ModeDecode:
	default:
		return fmt.Errorf("harness: case %s: unsupported mode %d", c.Name, int(c.Mode))
	}
	if c.Batch < 1 || c.Heads < 1 || c.SeqLen < 1 || c.HeadDim < 1 {
		return fmt.Errorf("harness: case %s: invalid dims batch=%d heads=%d seq=%d head_dim=%d",
			c.Name, c.Batch, c.Heads, c.SeqLen, c.HeadDim)
	}
	if c.KVCacheLen < 0 {
		return fmt.Errorf("harness: case %s: negative kv cache length %d", c.Name, c.KVCacheLen)
	}

	switch c.Mode {
	case ModePrefill:
		if c.SeqLen%tile.Size != 0 {
			return fmt.Errorf("harness: case %s: prefill seq length %d must be a multiple of %d",
				c.Name, c.SeqLen, tile.Size)
		}
		if c.KVCacheLen != 0 {
			return fmt.Errorf("harness: case %s: prefill requires an empty kv cache, got length %d",
				c.Name, c.KVCacheLen)
		}
	case ModeDecode:
		if c.Batch%tile.Size != 0 {
			return fmt.Errorf("harness: case %s: decode batch %d must be a multiple of %d",
				c.Name, c.Batch, tile.Size)
		}
		if c.SeqLen != 1 {
			return fmt.Errorf("harness: case %s: decode query length must be 1, got %d", c.Name, c.SeqLen)
		}
	}

	if c.MaxSeqLen > 0 && c.MaxSeqLen < c.KVCacheLen+c.SeqLen {
		return fmt.Errorf("harness: case %s: max seq length %d below populated %d",
			c.Name, c.MaxSeqLen, c.KVCacheLen+c.SeqLen)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("harness: case %s: threshold %v outside [0, 1]", c.Name, c.Threshold)
	}
	if c.KVThreshold < 0 || c.KVThreshold > 1 {
		return fmt.Errorf("harness: case %s: kv threshold %v outside [0, 1]", c.Name, c.KVThreshold)
	}

	n := c.Mesh.NumDevices()
	if n < 1 {
		return fmt.Errorf("harness: case %s: empty mesh %s", c.Name, c.Mesh)
	}
	if c.Batch%n != 0 {
		return fmt.Errorf("harness: case %s: batch %d not divisible across %d devices", c.Name, c.Batch, n)
	}
	return nil
}

// Comparison is one scored golden-vs-device check within a run.
type Comparison struct {
	Name      string
	Result    compare.Result
	Threshold float64
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s: %s (threshold %.2f)", c.Name, c.Result, c.Threshold)
}

// Report is the outcome of one case: every comparison with its score,
// and the overall gate. Scenario is "prefill", "decode" or "conv".
type Report struct {
	Case        string
	Scenario    string
	Comparisons []Comparison
	Passed      bool
}

func (r *Report) add(name string, res compare.Result, threshold float64) {
	r.Comparisons = append(r.Comparisons, Comparison{Name: name, Result: res, Threshold: threshold})
	if !res.Passed {
		r.Passed = false
	}
}

// Err returns a descriptive error when the report failed, nil otherwise.
func (r *Report) Err() error {
	if r.Passed {
		return nil
	}
	for _, c := range r.Comparisons {
		if !c.Result.Passed {
			return fmt.Errorf("harness: case %s: %s comparison failed: pcc %.6f below threshold %.6f",
				r.Case, c.Name, c.Result.Score, c.Threshold)
		}
	}
	return fmt.Errorf("harness: case %s failed", r.Case)
}

// releaseAll releases device-side tensors once their comparisons have
// been consumed.
func releaseAll(raws []*tensor.RawTensor) {
	for _, r := range raws {
		if r != nil {
			r.Release()
		}
	}
}
