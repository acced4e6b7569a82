package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meshgold/meshgold/internal/bench"
	"github.com/meshgold/meshgold/internal/config"
	"github.com/meshgold/meshgold/internal/harness"
)

// scenario is one named validation case runnable by run and bench.
type scenario struct {
	name string
	run  func(ctx context.Context, logger *slog.Logger, prof *bench.Profile) (*harness.Report, error)
}

// buildScenarios assembles the built-in case matrix from the loaded
// configuration. Batch sizes scale with the mesh so every case shards
// evenly; decode batches stay tile-aligned.
func buildScenarios(cfg config.Config) ([]scenario, error) {
	storage, err := cfg.Device.StorageDType()
	if err != nil {
		return nil, err
	}
	memory, err := cfg.Device.MemoryConfig()
	if err != nil {
		return nil, err
	}
	m, err := cfg.Device.Mesh()
	if err != nil {
		return nil, err
	}
	n := m.NumDevices()

	prefill := harness.Case{
		Name:        "attention_prefill_seq128",
		Mode:        harness.ModePrefill,
		Batch:       2 * n,
		Heads:       4,
		SeqLen:      128,
		MaxSeqLen:   128,
		HeadDim:     64,
		Storage:     storage,
		Memory:      memory,
		Mesh:        m,
		Threshold:   cfg.Compare.Threshold,
		KVThreshold: cfg.Compare.KVThreshold,
		Seed:        cfg.Seed,
	}
	decode := harness.Case{
		Name:        "attention_decode_kv128",
		Mode:        harness.ModeDecode,
		Batch:       32 * n,
		Heads:       4,
		SeqLen:      1,
		KVCacheLen:  128,
		MaxSeqLen:   256,
		HeadDim:     64,
		Storage:     storage,
		Memory:      memory,
		Mesh:        m,
		Threshold:   cfg.Compare.Threshold,
		KVThreshold: cfg.Compare.KVThreshold,
		Seed:        cfg.Seed,
	}
	// Two conv stages accumulate more precision loss than a single
	// attention block, so this case uses the looser deep-stack bound.
	conv := harness.ConvCase{
		Name:        "conv_stack_32x32",
		Batch:       2 * n,
		InChannels:  3,
		MidChannels: 16,
		OutChannels: 8,
		Height:      32,
		Width:       32,
		Storage:     storage,
		Memory:      memory,
		Mesh:        m,
		Threshold:   cfg.Compare.DeepThreshold,
		Seed:        cfg.Seed,
	}

	return []scenario{
		{name: prefill.Name, run: func(ctx context.Context, logger *slog.Logger, prof *bench.Profile) (*harness.Report, error) {
			return harness.RunAttention(ctx, prefill, logger, prof)
		}},
		{name: decode.Name, run: func(ctx context.Context, logger *slog.Logger, prof *bench.Profile) (*harness.Report, error) {
			return harness.RunAttention(ctx, decode, logger, prof)
		}},
		{name: conv.Name, run: func(ctx context.Context, logger *slog.Logger, prof *bench.Profile) (*harness.Report, error) {
			return harness.RunConvStack(ctx, conv, logger, prof)
		}},
	}, nil
}

// selectScenarios filters by name; with no names, all scenarios run.
func selectScenarios(all []scenario, names []string) ([]scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]scenario, len(all))
	for _, s := range all {
		byName[s.name] = s
	}
	out := make([]scenario, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}
