// Package wasmconfig holds the WASM execution core's configuration surface:
// the recognized option keys from spec §6 plus their defaults and validation.
package wasmconfig

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the WASM execution core.
type Config struct {
	// Compile cache
	CacheCapacity int `yaml:"cache_capacity"`

	// Step-descriptor defaults
	DefaultFuelLimit      uint64 `yaml:"default_fuel_limit"`
	DefaultTimeoutSeconds uint64 `yaml:"default_timeout_seconds"`
	DefaultMemoryLimitMiB uint64 `yaml:"default_memory_limit_mib"`
	DefaultStackSizeKiB   uint64 `yaml:"default_stack_size_kib"`

	// System interface / signature policy
	EnableSystemInterface bool `yaml:"enable_system_interface"`
	RequireSignature      bool `yaml:"require_signature"`
	AOTPrecompile         bool `yaml:"aot_precompile"`

	// Logging
	LogFormat string `yaml:"log_format"` // "console" | "json"

	// Storage locations for the default artifact/metadata store implementations.
	ArtifactStoreDir   string `yaml:"artifact_store_dir"`
	MetadataStorePath  string `yaml:"metadata_store_path"`
	DatabaseExecDBPath string `yaml:"database_exec_db_path"`

	// Admin API
	AdminListenAddr string `yaml:"admin_listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults, mirroring the
// spec's own stated defaults (fuel 1,000,000; timeout 30s; memory 64 MiB).
func DefaultConfig() *Config {
	return &Config{
		CacheCapacity:         256,
		DefaultFuelLimit:      1_000_000,
		DefaultTimeoutSeconds: 30,
		DefaultMemoryLimitMiB: 64,
		DefaultStackSizeKiB:   1024,
		EnableSystemInterface: true,
		RequireSignature:      false,
		AOTPrecompile:         false,
		LogFormat:             "console",
		ArtifactStoreDir:      "./data/artifacts",
		MetadataStorePath:     "./data/metadata.db",
		DatabaseExecDBPath:    "./data/guestdb.db",
		AdminListenAddr:       ":8088",
	}
}

// ApplyDefaults fills any zero-valued fields from DefaultConfig, the way
// pkg/serverless.Config.ApplyDefaults backfills a partially-specified config.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.CacheCapacity == 0 {
		c.CacheCapacity = d.CacheCapacity
	}
	if c.DefaultFuelLimit == 0 {
		c.DefaultFuelLimit = d.DefaultFuelLimit
	}
	if c.DefaultTimeoutSeconds == 0 {
		c.DefaultTimeoutSeconds = d.DefaultTimeoutSeconds
	}
	if c.DefaultMemoryLimitMiB == 0 {
		c.DefaultMemoryLimitMiB = d.DefaultMemoryLimitMiB
	}
	if c.DefaultStackSizeKiB == 0 {
		c.DefaultStackSizeKiB = d.DefaultStackSizeKiB
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.ArtifactStoreDir == "" {
		c.ArtifactStoreDir = d.ArtifactStoreDir
	}
	if c.MetadataStorePath == "" {
		c.MetadataStorePath = d.MetadataStorePath
	}
	if c.DatabaseExecDBPath == "" {
		c.DatabaseExecDBPath = d.DatabaseExecDBPath
	}
	if c.AdminListenAddr == "" {
		c.AdminListenAddr = d.AdminListenAddr
	}
}

// Validate checks the configuration for internally inconsistent values,
// returning every problem found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error
	if c.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("cache_capacity must be positive, got %d", c.CacheCapacity))
	}
	if c.DefaultFuelLimit == 0 {
		errs = append(errs, fmt.Errorf("default_fuel_limit must be positive"))
	}
	if c.DefaultTimeoutSeconds == 0 {
		errs = append(errs, fmt.Errorf("default_timeout_seconds must be positive"))
	}
	if c.DefaultMemoryLimitMiB == 0 {
		errs = append(errs, fmt.Errorf("default_memory_limit_mib must be positive"))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be \"console\" or \"json\", got %q", c.LogFormat))
	}
	return errs
}

// WithCacheCapacity returns a shallow copy of c with CacheCapacity overridden,
// matching the teacher's With*-style immutable config helpers.
func (c *Config) WithCacheCapacity(n int) *Config {
	cp := *c
	cp.CacheCapacity = n
	return &cp
}

// LoadFile reads a YAML config file, rejecting unknown fields the same way
// the teacher's pkg/config.DecodeStrict does, then backfills anything left
// unset from DefaultConfig.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
