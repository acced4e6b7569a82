package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/meshgold/meshgold/internal/backend/cpu"
	"github.com/meshgold/meshgold/internal/bench"
	"github.com/meshgold/meshgold/internal/compare"
	"github.com/meshgold/meshgold/internal/mesh"
	"github.com/meshgold/meshgold/internal/nn"
	"github.com/meshgold/meshgold/internal/tensor"
)

// ConvCase configures one conv-stack validation scenario. The input is
// sharded along the batch axis; the kernels are replicated to every
// device.
type ConvCase struct {
	Name string

	Batch       int
	InChannels  int
	MidChannels int
	OutChannels int
	Height      int
	Width       int

	Storage tensor.DataType
	Memory  tensor.MemoryConfig
	Mesh    mesh.Mesh

	Threshold float64
	Seed      int64
}

// Validate enforces the case preconditions.
func (c *ConvCase) Validate() error {
	if c.Batch < 1 || c.InChannels < 1 || c.MidChannels < 1 || c.OutChannels < 1 {
		return fmt.Errorf("harness: case %s: invalid dims batch=%d channels=%d/%d/%d",
			c.Name, c.Batch, c.InChannels, c.MidChannels, c.OutChannels)
	}
	if c.Height%4 != 0 || c.Width%4 != 0 {
		return fmt.Errorf("harness: case %s: input %dx%d must be divisible by 4 for two pool stages",
			c.Name, c.Height, c.Width)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("harness: case %s: threshold %v outside [0, 1]", c.Name, c.Threshold)
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

// RunConvStack executes one conv-stack validation case. prof may be nil.
func RunConvStack(ctx context.Context, c ConvCase, logger *slog.Logger, prof *bench.Profile) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(c.Seed))
	host := cpu.New()

	stack := nn.NewConvStack(c.InChannels, c.MidChannels, c.OutChannels, rng, host)
	x := tensor.Randn[float32](tensor.Shape{c.Batch, c.InChannels, c.Height, c.Width}, rng, host)

	prof.Start("reference")
	refOut := stack.Forward(x)
	prof.End("reference")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices, err := c.Mesh.OpenDevices(c.Storage)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, d := range devices {
			d.Close()
		}
	}()

	prof.Start("device_exec")
	xParts, err := mesh.ShardToMesh(c.Mesh, x.Raw(), 0)
	if err != nil {
		return nil, err
	}
	k1, k2 := stack.Weights()
	k1Parts, err := mesh.ReplicateToMesh(c.Mesh, k1.Raw())
	if err != nil {
		return nil, err
	}
	k2Parts, err := mesh.ReplicateToMesh(c.Mesh, k2.Raw())
	if err != nil {
		return nil, err
	}

	outParts := make([]*tensor.RawTensor, len(devices))
	for i, d := range devices {
		dx, err := d.FromHost(xParts[i], c.Memory)
		if err != nil {
			return nil, err
		}
		dk1, err := d.FromHost(k1Parts[i], c.Memory)
		if err != nil {
			return nil, err
		}
		dk2, err := d.FromHost(k2Parts[i], c.Memory)
		if err != nil {
			return nil, err
		}

		outD := nn.ForwardWith(
			tensor.New[float32](dx, d),
			tensor.New[float32](dk1, d),
			tensor.New[float32](dk2, d))
		d.Synchronize()
		outParts[i] = outD.Raw()

		releaseAll([]*tensor.RawTensor{dx, dk1, dk2, xParts[i], k1Parts[i], k2Parts[i]})
	}
	outRaw, err := mesh.ConcatFromMesh(outParts, 0)
	if err != nil {
		return nil, err
	}
	releaseAll(outParts)
	prof.End("device_exec")
	defer outRaw.Release()

	prof.Start("compare")
	defer prof.End("compare")
	res, err := compare.CheckPCC(refOut.Raw(), outRaw, c.Threshold)
	if err != nil {
		return nil, err
	}

	report := &Report{Case: c.Name, Scenario: "conv", Passed: true}
	report.add("output", res, c.Threshold)
	logger.Info("comparison",
		"case", c.Name,
		"name", "output",
		"score", res.Score,
		"threshold", c.Threshold,
		"passed", res.Passed)
	return report, nil
}
