// Package compare decides whether a device-computed tensor sufficiently
// matches a golden reference tensor. The primary metric is the Pearson
// correlation coefficient over the flattened element sequences, with an
// explicit degenerate branch for zero-variance inputs where the naive
// formula would divide by zero.
package compare

import (
	"fmt"
	"math"

	"github.com/meshgold/meshgold/internal/tensor"
)

// degenerateAtol is the absolute tolerance of the exact-equality
// fallback used when either input has zero variance.
const degenerateAtol = 1e-6

// Result is the outcome of one comparison. Score is the correlation
// coefficient in [-1, 1], or 1.0/0.0 for exact-match comparisons.
type Result struct {
	Passed bool
	Score  float64
}

func (r Result) String() string {
	return fmt.Sprintf("passed=%t score=%.6f", r.Passed, r.Score)
}

// flatten reads a float tensor's elements as float64.
func flatten(r *tensor.RawTensor) ([]float64, error) {
	switch r.DType() {
	case tensor.Float32:
		src := r.AsFloat32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out, nil
	case tensor.Float64:
		return r.AsFloat64(), nil
	default:
		return nil, fmt.Errorf("compare: dtype %s is not a host float type (unpack storage tensors first)", r.DType())
	}
}

func checkShapes(a, b *tensor.RawTensor) error {
	if !a.Shape().Equal(b.Shape()) {
		return fmt.Errorf("compare: shape mismatch: %v vs %v", a.Shape(), b.Shape())
	}
	if a.NumElements() == 0 {
		return fmt.Errorf("compare: empty tensors")
	}
	return nil
}

// PCC computes the Pearson correlation coefficient between the
// flattened element sequences of a and b. When either side has zero
// variance the coefficient is 1.0 if all elements are equal within a
// small absolute tolerance, else 0.0. Never returns NaN for well-formed
// equal-shape inputs.
func PCC(a, b *tensor.RawTensor) (float64, error) {
	if err := checkShapes(a, b); err != nil {
		return 0, err
	}
	x, err := flatten(a)
	if err != nil {
		return 0, err
	}
	y, err := flatten(b)
	if err != nil {
		return 0, err
	}

	// Identical sequences score exactly 1.0; the formula below can land
	// a few ulps under it.
	identical := true
	for i := range x {
		if x[i] != y[i] {
			identical = false
			break
		}
	}
	if identical {
		return 1, nil
	}

	n := float64(len(x))
	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= n
	meanY /= n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		for i := range x {
			if math.Abs(x[i]-y[i]) > degenerateAtol {
				return 0, nil
			}
		}
		return 1, nil
	}

	score := cov / math.Sqrt(varX*varY)
	// Guard against float drift past the mathematical bounds.
	return math.Max(-1, math.Min(1, score)), nil
}

// CheckPCC computes the PCC and gates it against threshold.
// threshold must be in [0, 1].
func CheckPCC(a, b *tensor.RawTensor, threshold float64) (Result, error) {
	if threshold < 0 || threshold > 1 {
		return Result{}, fmt.Errorf("compare: threshold %v outside [0, 1]", threshold)
	}
	score, err := PCC(a, b)
	if err != nil {
		return Result{}, err
	}
	return Result{Passed: score >= threshold, Score: score}, nil
}

// AssertPCC is CheckPCC with a non-nil error on failure, carrying the
// score and threshold for diagnosis.
func AssertPCC(a, b *tensor.RawTensor, threshold float64) error {
	res, err := CheckPCC(a, b, threshold)
	if err != nil {
		return err
	}
	if !res.Passed {
		return fmt.Errorf("compare: pcc %.6f below threshold %.6f", res.Score, threshold)
	}
	return nil
}

// Exact compares integer-valued tensors elementwise. The score is 1.0
// on a perfect match and 0.0 otherwise.
func Exact(a, b *tensor.RawTensor) (Result, error) {
	if err := checkShapes(a, b); err != nil {
		return Result{}, err
	}
	if a.DType() != b.DType() {
		return Result{}, fmt.Errorf("compare: dtype mismatch: %s vs %s", a.DType(), b.DType())
	}
	if !a.DType().IsInteger() && a.DType() != tensor.Bool {
		return Result{}, fmt.Errorf("compare: exact comparison is for integer tensors, got %s", a.DType())
	}
	ab, bb := a.Data(), b.Data()
	for i := 0; i < a.ByteSize(); i++ {
		if ab[i] != bb[i] {
			return Result{Passed: false, Score: 0}, nil
		}
	}
	return Result{Passed: true, Score: 1}, nil
}

// AllClose reports whether every pair of elements satisfies
// |a-b| <= atol + rtol*|b|.
func AllClose(a, b *tensor.RawTensor, rtol, atol float64) (bool, error) {
	if err := checkShapes(a, b); err != nil {
		return false, err
	}
	x, err := flatten(a)
	if err != nil {
		return false, err
	}
	y, err := flatten(b)
	if err != nil {
		return false, err
	}
	for i := range x {
		if math.Abs(x[i]-y[i]) > atol+rtol*math.Abs(y[i]) {
			return false, nil
		}
	}
	return true, nil
}
