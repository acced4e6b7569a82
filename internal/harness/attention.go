package harness

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/meshgold/meshgold/internal/backend/cpu"
	"github.com/meshgold/meshgold/internal/bench"
	"github.com/meshgold/meshgold/internal/compare"
	"github.com/meshgold/meshgold/internal/mesh"
	"github.com/meshgold/meshgold/internal/nn"
	"github.com/meshgold/meshgold/internal/tensor"
)

type hostTensor = tensor.Tensor[float32, *cpu.CPUBackend]
type devTensor = tensor.Tensor[float32, *mesh.Device]

// RunAttention executes one attention validation case: golden path on
// the host backend, device path sharded over the mesh, comparison of
// the main output and both KV cache halves. prof may be nil.
func RunAttention(ctx context.Context, c Case, logger *slog.Logger, prof *bench.Profile) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(c.Seed))
	host := cpu.New()
	maxLen := c.maxSeqLen()

	// The reference and device paths share one seeded input set.
	qShape := tensor.Shape{c.Batch, c.Heads, c.SeqLen, c.HeadDim}
	q := tensor.Randn[float32](qShape, rng, host)
	k := tensor.Randn[float32](qShape, rng, host)
	v := tensor.Randn[float32](qShape, rng, host)

	var kHist, vHist *hostTensor
	if c.KVCacheLen > 0 {
		histShape := tensor.Shape{c.Batch, c.Heads, c.KVCacheLen, c.HeadDim}
		kHist = tensor.Randn[float32](histShape, rng, host)
		vHist = tensor.Randn[float32](histShape, rng, host)
	}

	prof.Start("reference")
	refCache := nn.NewPaddedKVCache(c.Batch, c.Heads, maxLen, c.HeadDim, host)
	if kHist != nil {
		refCache.Fill(kHist, vHist)
	}
	var mask *hostTensor
	if c.Mode == ModePrefill {
		mask = nn.CausalMask(c.SeqLen, host)
	}
	refOut := nn.AttentionWithCache(q, k, v, refCache, mask, 0)
	refK, refV := refCache.Populated()
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

	var outRaw, devK, devV *tensor.RawTensor
	prof.Start("device_exec")
	switch c.Mode {
	case ModePrefill:
		outRaw, devK, devV, err = runPrefill(c, devices, q, k, v, maxLen)
	case ModeDecode:
		outRaw, devK, devV, err = runDecode(c, devices, q, k, v, kHist, vHist, maxLen)
	}
	prof.End("device_exec")
	if err != nil {
		return nil, err
	}
	defer releaseAll([]*tensor.RawTensor{outRaw, devK, devV})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Normalize device outputs back to the reference's logical shape.
	prof.Start("compare")
	defer prof.End("compare")
	refOutRaw := refOut.Raw()
	if c.Mode == ModeDecode {
		// Device layout carries the batch on the sequence axis: swap
		// back, then drop the query axis on both sides.
		outRaw = host.Squeeze(host.Transpose(outRaw, 2, 1, 0, 3), 2)
		refOutRaw = host.Squeeze(refOutRaw, 2)
	}
	populated := refCache.Len()
	devKTrim := host.Narrow(devK, 2, 0, populated)
	devVTrim := host.Narrow(devV, 2, 0, populated)

	report := &Report{Case: c.Name, Scenario: c.Mode.String(), Passed: true}

	outRes, err := compare.CheckPCC(refOutRaw, outRaw, c.Threshold)
	if err != nil {
		return nil, err
	}
	report.add("output", outRes, c.Threshold)

	kRes, err := compare.CheckPCC(refK.Raw(), devKTrim, c.KVThreshold)
	if err != nil {
		return nil, err
	}
	report.add("kv_key", kRes, c.KVThreshold)

	vRes, err := compare.CheckPCC(refV.Raw(), devVTrim, c.KVThreshold)
	if err != nil {
		return nil, err
	}
	report.add("kv_value", vRes, c.KVThreshold)

	for _, cmp := range report.Comparisons {
		logger.Info("comparison",
			"case", c.Name,
			"mode", c.Mode.String(),
			"name", cmp.Name,
			"score", cmp.Result.Score,
			"threshold", cmp.Threshold,
			"passed", cmp.Result.Passed)
	}
	logger.Debug("device dispatch",
		"case", c.Name,
		"compiles", devices[0].Compiles(),
		"cache_hits", devices[0].CacheHits())

	return report, nil
}

// runPrefill shards the batch axis across the mesh and runs the prompt
// through causal attention on every device.
func runPrefill(c Case, devices []*mesh.Device, q, k, v *hostTensor, maxLen int) (out, kPad, vPad *tensor.RawTensor, err error) {
	n := len(devices)
	qParts, err := mesh.ShardToMesh(c.Mesh, q.Raw(), 0)
	if err != nil {
		return nil, nil, nil, err
	}
	kParts, err := mesh.ShardToMesh(c.Mesh, k.Raw(), 0)
	if err != nil {
		return nil, nil, nil, err
	}
	vParts, err := mesh.ShardToMesh(c.Mesh, v.Raw(), 0)
	if err != nil {
		return nil, nil, nil, err
	}

	outParts := make([]*tensor.RawTensor, n)
	kCacheParts := make([]*tensor.RawTensor, n)
	vCacheParts := make([]*tensor.RawTensor, n)
	for i, d := range devices {
		dq, err := d.FromHost(qParts[i], c.Memory)
		if err != nil {
			return nil, nil, nil, err
		}
		dk, err := d.FromHost(kParts[i], c.Memory)
		if err != nil {
			return nil, nil, nil, err
		}
		dv, err := d.FromHost(vParts[i], c.Memory)
		if err != nil {
			return nil, nil, nil, err
		}

		qd := tensor.New[float32](dq, d)
		kd := tensor.New[float32](dk, d)
		vd := tensor.New[float32](dv, d)
		cache := nn.NewPaddedKVCache(c.Batch/n, c.Heads, maxLen, c.HeadDim, d)
		maskD := nn.CausalMask(c.SeqLen, d)

		outD := nn.AttentionWithCache(qd, kd, vd, cache, maskD, 0)
		d.Synchronize()

		outParts[i] = outD.Raw()
		ck, cv := cache.Padded()
		kCacheParts[i] = ck.Raw()
		vCacheParts[i] = cv.Raw()

		releaseAll([]*tensor.RawTensor{dq, dk, dv, maskD.Raw(), qParts[i], kParts[i], vParts[i]})
	}

	return composeParts(outParts, 0, kCacheParts, vCacheParts)
}

// runDecode puts the batch on the device sequence axis, shards it, and
// runs one generation step per batch row against the populated cache.
func runDecode(c Case, devices []*mesh.Device, q, k, v, kHist, vHist *hostTensor, maxLen int) (out, kPad, vPad *tensor.RawTensor, err error) {
	n := len(devices)
	qDev := q.Transpose(2, 1, 0, 3) // [1, heads, batch, head_dim]
	qParts, err := mesh.ShardToMesh(c.Mesh, qDev.Raw(), 2)
	if err != nil {
		return nil, nil, nil, err
	}
	kParts, err := mesh.ShardToMesh(c.Mesh, k.Raw(), 0)
	if err != nil {
		return nil, nil, nil, err
	}
	vParts, err := mesh.ShardToMesh(c.Mesh, v.Raw(), 0)
	if err != nil {
		return nil, nil, nil, err
	}
	var histKParts, histVParts []*tensor.RawTensor
	if kHist != nil {
		histKParts, err = mesh.ShardToMesh(c.Mesh, kHist.Raw(), 0)
		if err != nil {
			return nil, nil, nil, err
		}
		histVParts, err = mesh.ShardToMesh(c.Mesh, vHist.Raw(), 0)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	outParts := make([]*tensor.RawTensor, n)
	kCacheParts := make([]*tensor.RawTensor, n)
	vCacheParts := make([]*tensor.RawTensor, n)
	for i, d := range devices {
		dq, err := d.FromHost(qParts[i], c.Memory)
		if err != nil {
			return nil, nil, nil, err
		}
		dk, err := d.FromHost(kParts[i], c.Memory)
		if err != nil {
			return nil, nil, nil, err
		}
		dv, err := d.FromHost(vParts[i], c.Memory)
		if err != nil {
			return nil, nil, nil, err
		}

		// Back to [batch_shard, heads, 1, head_dim] for the kernel.
		qd := tensor.New[float32](dq, d).Transpose(2, 1, 0, 3)
		kd := tensor.New[float32](dk, d)
		vd := tensor.New[float32](dv, d)

		cache := nn.NewPaddedKVCache(c.Batch/n, c.Heads, maxLen, c.HeadDim, d)
		var toRelease []*tensor.RawTensor
		if histKParts != nil {
			dhk, err := d.FromHost(histKParts[i], c.Memory)
			if err != nil {
				return nil, nil, nil, err
			}
			dhv, err := d.FromHost(histVParts[i], c.Memory)
			if err != nil {
				return nil, nil, nil, err
			}
			cache.Fill(tensor.New[float32](dhk, d), tensor.New[float32](dhv, d))
			toRelease = append(toRelease, dhk, dhv, histKParts[i], histVParts[i])
		}

		outD := nn.AttentionWithCache(qd, kd, vd, cache, nil, 0)
		outDev := outD.Transpose(2, 1, 0, 3) // device layout [1, heads, batch_shard, head_dim]
		d.Synchronize()

		outParts[i] = outDev.Raw()
		ck, cv := cache.Padded()
		kCacheParts[i] = ck.Raw()
		vCacheParts[i] = cv.Raw()

		toRelease = append(toRelease, dq, qd.Raw(), dk, dv, outD.Raw(),
			qParts[i], kParts[i], vParts[i])
		releaseAll(toRelease)
	}

	return composeParts(outParts, 2, kCacheParts, vCacheParts)
}

// composeParts gathers per-device outputs and padded caches back into
// host tensors, releasing the shards.
func composeParts(outParts []*tensor.RawTensor, outDim int, kParts, vParts []*tensor.RawTensor) (out, kPad, vPad *tensor.RawTensor, err error) {
	out, err = mesh.ConcatFromMesh(outParts, outDim)
	if err != nil {
		return nil, nil, nil, err
	}
	kPad, err = mesh.ConcatFromMesh(kParts, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	vPad, err = mesh.ConcatFromMesh(vParts, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	releaseAll(outParts)
	releaseAll(kParts)
	releaseAll(vParts)
	return out, kPad, vPad, nil
}
