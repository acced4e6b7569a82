// Package compare exposes the golden-vs-device numerical comparator:
// Pearson correlation with an explicit zero-variance fallback, exact
// matching for integer tensors, and an allclose utility.
package compare

import (
	"github.com/meshgold/meshgold/internal/compare"
	"github.com/meshgold/meshgold/internal/tensor"
)

// Result is the outcome of one comparison.
type Result = compare.Result

// PCC computes the Pearson correlation coefficient between the
// flattened element sequences of a and b.
func PCC(a, b *tensor.RawTensor) (float64, error) {
	return compare.PCC(a, b)
}

// CheckPCC computes the PCC and gates it against threshold.
func CheckPCC(a, b *tensor.RawTensor, threshold float64) (Result, error) {
	return compare.CheckPCC(a, b, threshold)
}

// AssertPCC is CheckPCC with a non-nil error on failure.
func AssertPCC(a, b *tensor.RawTensor, threshold float64) error {
	return compare.AssertPCC(a, b, threshold)
}

// Exact compares integer-valued tensors elementwise.
func Exact(a, b *tensor.RawTensor) (Result, error) {
	return compare.Exact(a, b)
}

// AllClose reports whether every pair of elements satisfies
// |a-b| <= atol + rtol*|b|.
func AllClose(a, b *tensor.RawTensor, rtol, atol float64) (bool, error) {
	return compare.AllClose(a, b, rtol, atol)
}
