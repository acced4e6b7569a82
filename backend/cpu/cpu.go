// Package cpu exposes the host CPU backend, the reference ("golden")
// compute path of the validation harness.
package cpu

import (
	"github.com/meshgold/meshgold/internal/backend/cpu"
)

// CPUBackend computes on the host in full precision.
type CPUBackend = cpu.CPUBackend

// New creates a CPU backend.
func New() *CPUBackend {
	return cpu.New()
}
