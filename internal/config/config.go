package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// DefaultOutputCapacity is the fixed size of the native output region.
const DefaultOutputCapacity = 512 * 1024

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Output   OutputConfig   `mapstructure:"output"`
	Compile  CompileConfig  `mapstructure:"compile"`
	Compiler CompilerConfig `mapstructure:"compiler"`
	Wasm     WasmConfig     `mapstructure:"wasm"`
}

// OutputConfig controls where snapshots go and how much room the compiler gets.
type OutputConfig struct {
	// Default snapshot path used by the CLI.
	Path string `mapstructure:"path"`
	// Output region capacity in bytes. Never grown at runtime.
	Capacity int64 `mapstructure:"capacity"`
}

// CompileConfig holds default compile flags.
type CompileConfig struct {
	Global bool `mapstructure:"global"`
	Strict bool `mapstructure:"strict"`
}

// CompilerConfig selects the compiler module.
type CompilerConfig struct {
	// Path to a compiler .wasm file. Takes precedence over Name.
	Module string `mapstructure:"module"`
	// Name of a compiler package found under Paths.
	Name string `mapstructure:"name"`
	// Directories scanned for compiler packages.
	Paths []string `mapstructure:"paths"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug info in compiled modules.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory. Empty disables the on-disk cache.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("output.path", "snapshot.out")
	v.SetDefault("output.capacity", DefaultOutputCapacity)
	v.SetDefault("compile.global", true)
	v.SetDefault("compile.strict", false)
	v.SetDefault("compiler.module", "")
	v.SetDefault("compiler.name", "")
	v.SetDefault("compiler.paths", []string{"./compilers"})

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 65536) // 4GB, the wasm32 maximum
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 16)

	v.SetEnvPrefix("snapc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if c.Output.Capacity <= 0 || c.Output.Capacity > math.MaxUint32 {
		return fmt.Errorf("output.capacity must be between 1 and %d, got %d", uint32(math.MaxUint32), c.Output.Capacity)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must not be empty")
	}
	if c.Wasm.MaxInstances <= 0 {
		return fmt.Errorf("wasm.max_instances must be positive, got %d", c.Wasm.MaxInstances)
	}
	return nil
}
