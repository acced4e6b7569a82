// Package config loads the CLI configuration from defaults, flags,
// environment variables (MESHGOLD_ prefix) and an optional config file,
// in that order of increasing precedence for env/file over defaults and
// flags over everything.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/meshgold/meshgold/internal/mesh"
	"github.com/meshgold/meshgold/internal/tensor"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Device  DeviceConfig  `mapstructure:"device"`
	Compare CompareConfig `mapstructure:"compare"`
	Bench   BenchConfig   `mapstructure:"bench"`
	Seed    int64         `mapstructure:"seed"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

type DeviceConfig struct {
	Storage  string `mapstructure:"storage"` // float32, bfloat16, float8
	MeshRows int    `mapstructure:"mesh_rows"`
	MeshCols int    `mapstructure:"mesh_cols"`
	Memory   string `mapstructure:"memory"` // dram, l1
	Workers  int    `mapstructure:"workers"`
}

type CompareConfig struct {
	// Threshold gates attention-scale outputs; DeepThreshold is the
	// looser bound used for deep multi-layer stacks. Both are
	// configuration inputs, not derived from a precision model.
	Threshold     float64 `mapstructure:"threshold"`
	DeepThreshold float64 `mapstructure:"deep_threshold"`
	KVThreshold   float64 `mapstructure:"kv_threshold"`
}

type BenchConfig struct {
	Iterations    int           `mapstructure:"iterations"`
	SteadyBudget  time.Duration `mapstructure:"steady_budget"`
	CompileBudget time.Duration `mapstructure:"compile_budget"`
	Format        string        `mapstructure:"format"` // table, json
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Device: DeviceConfig{
			Storage:  "bfloat16",
			MeshRows: 1,
			MeshCols: 1,
			Memory:   "dram",
			Workers:  0,
		},
		Compare: CompareConfig{
			Threshold:     0.99,
			DeepThreshold: 0.86,
			KVThreshold:   0.99,
		},
		Bench: BenchConfig{
			Iterations:    10,
			SteadyBudget:  0,
			CompileBudget: 0,
			Format:        "table",
		},
		Seed: 42,
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	fs.String("log-format", defaults.Log.Format, "Log format (json, text)")
	fs.String("device-storage", defaults.Device.Storage, "Device storage dtype (float32, bfloat16, float8)")
	fs.Int("device-mesh-rows", defaults.Device.MeshRows, "Device mesh rows")
	fs.Int("device-mesh-cols", defaults.Device.MeshCols, "Device mesh columns")
	fs.String("device-memory", defaults.Device.Memory, "Device memory tier (dram, l1)")
	fs.Int("device-workers", defaults.Device.Workers, "CPU kernel worker count (0 = GOMAXPROCS)")
	fs.Float64("compare-threshold", defaults.Compare.Threshold, "PCC threshold for attention-scale outputs")
	fs.Float64("compare-deep-threshold", defaults.Compare.DeepThreshold, "PCC threshold for deep multi-layer stacks")
	fs.Float64("compare-kv-threshold", defaults.Compare.KVThreshold, "PCC threshold for KV cache comparisons")
	fs.Int("bench-iterations", defaults.Bench.Iterations, "Steady-state benchmark iterations")
	fs.Duration("bench-steady-budget", defaults.Bench.SteadyBudget, "Steady-state latency budget (0 = no gate)")
	fs.Duration("bench-compile-budget", defaults.Bench.CompileBudget, "Compile-inclusive first-run budget (0 = no gate)")
	fs.String("bench-format", defaults.Bench.Format, "Benchmark report format (table, json)")
	fs.Int64("seed", defaults.Seed, "Seed for input and weight generation")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("MESHGOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("meshgold")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("device.storage", c.Device.Storage)
	v.SetDefault("device.mesh_rows", c.Device.MeshRows)
	v.SetDefault("device.mesh_cols", c.Device.MeshCols)
	v.SetDefault("device.memory", c.Device.Memory)
	v.SetDefault("device.workers", c.Device.Workers)
	v.SetDefault("compare.threshold", c.Compare.Threshold)
	v.SetDefault("compare.deep_threshold", c.Compare.DeepThreshold)
	v.SetDefault("compare.kv_threshold", c.Compare.KVThreshold)
	v.SetDefault("bench.iterations", c.Bench.Iterations)
	v.SetDefault("bench.steady_budget", c.Bench.SteadyBudget)
	v.SetDefault("bench.compile_budget", c.Bench.CompileBudget)
	v.SetDefault("bench.format", c.Bench.Format)
	v.SetDefault("seed", c.Seed)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("log.level", "log-level")
	v.RegisterAlias("log.format", "log-format")
	v.RegisterAlias("device.storage", "device-storage")
	v.RegisterAlias("device.mesh_rows", "device-mesh-rows")
	v.RegisterAlias("device.mesh_cols", "device-mesh-cols")
	v.RegisterAlias("device.memory", "device-memory")
	v.RegisterAlias("device.workers", "device-workers")
	v.RegisterAlias("compare.threshold", "compare-threshold")
	v.RegisterAlias("compare.deep_threshold", "compare-deep-threshold")
	v.RegisterAlias("compare.kv_threshold", "compare-kv-threshold")
	v.RegisterAlias("bench.iterations", "bench-iterations")
	v.RegisterAlias("bench.steady_budget", "bench-steady-budget")
	v.RegisterAlias("bench.compile_budget", "bench-compile-budget")
	v.RegisterAlias("bench.format", "bench-format")
}

// StorageDType resolves the configured storage dtype name.
func (c DeviceConfig) StorageDType() (tensor.DataType, error) {
	switch strings.ToLower(c.Storage) {
	case "float32", "f32":
		return tensor.Float32, nil
	case "bfloat16", "bf16":
		return tensor.BFloat16, nil
	case "float8", "f8", "e4m3":
		return tensor.Float8, nil
	default:
		return 0, fmt.Errorf("config: unknown storage dtype %q", c.Storage)
	}
}

// MemoryConfig resolves the configured memory tier.
func (c DeviceConfig) MemoryConfig() (tensor.MemoryConfig, error) {
	switch strings.ToLower(c.Memory) {
	case "dram":
		return tensor.DRAMInterleaved, nil
	case "l1":
		return tensor.L1Sharded, nil
	default:
		return tensor.MemoryConfig{}, fmt.Errorf("config: unknown memory tier %q", c.Memory)
	}
}

// Mesh resolves the configured device grid.
func (c DeviceConfig) Mesh() (mesh.Mesh, error) {
	return mesh.New(c.MeshRows, c.MeshCols)
}
