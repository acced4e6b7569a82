// Package harness exposes the golden-vs-device validation runner: case
// configuration with mode preconditions, the attention and conv-stack
// scenarios, and the scored report.
package harness

import (
	"context"
	"log/slog"

	"github.com/meshgold/meshgold/internal/bench"
	"github.com/meshgold/meshgold/internal/harness"
)

// Mode selects the autoregressive execution mode of an attention case.
type Mode = harness.Mode

// Recognized modes.
const (
	ModePrefill Mode = harness.ModePrefill
	ModeDecode  Mode = harness.ModeDecode
)

// Case configures one attention validation scenario.
type Case = harness.Case

// ConvCase configures one conv-stack validation scenario.
type ConvCase = harness.ConvCase

// Comparison is one scored golden-vs-device check.
type Comparison = harness.Comparison

// Report is the outcome of one case.
type Report = harness.Report

// Profile collects named timing checkpoints during a run.
type Profile = bench.Profile

// NewProfile creates an enabled profile.
func NewProfile() *Profile {
	return bench.NewProfile()
}

// ParseMode converts a mode name; unknown modes are rejected.
func ParseMode(s string) (Mode, error) {
	return harness.ParseMode(s)
}

// RunAttention executes one attention validation case.
func RunAttention(ctx context.Context, c Case, logger *slog.Logger, prof *Profile) (*Report, error) {
	return harness.RunAttention(ctx, c, logger, prof)
}

// RunConvStack executes one conv-stack validation case.
func RunConvStack(ctx context.Context, c ConvCase, logger *slog.Logger, prof *Profile) (*Report, error) {
	return harness.RunConvStack(ctx, c, logger, prof)
}
