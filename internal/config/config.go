// Package config handles loading and validating plume configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/language/lua"
	"github.com/mminer/plume/sandbox"
	"github.com/mminer/plume/wire"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for plume.
type Config struct {
	Sandbox SandboxConfig `json:"sandbox" yaml:"sandbox"`
	Lua     LuaConfig     `json:"lua" yaml:"lua"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// SandboxConfig holds the per-run limits.
type SandboxConfig struct {
	Binding        string `json:"binding" yaml:"binding"`                   // Default: "tbl". Override: PLUME_BINDING.
	Quota          uint64 `json:"quota" yaml:"quota"`                       // Default: 1000. Override: PLUME_QUOTA.
	MaxDepth       int    `json:"max_depth" yaml:"max_depth"`               // Default: 100. Override: PLUME_MAX_DEPTH.
	TimeoutMS      int    `json:"timeout_ms" yaml:"timeout_ms"`             // 0 = no wall-clock limit. Override: PLUME_TIMEOUT.
	MaxOutputBytes int    `json:"max_output_bytes" yaml:"max_output_bytes"` // Cap on captured print output. Default: 64 KiB.
}

// Timeout returns the wall-clock limit of a run, 0 when disabled.
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// RunConfig converts s to the sandbox's per-run configuration.
func (s SandboxConfig) RunConfig() sandbox.Config {
	return sandbox.Config{
		Binding:        s.Binding,
		Quota:          s.Quota,
		MaxDepth:       s.MaxDepth,
		Timeout:        s.Timeout(),
		MaxOutputBytes: s.MaxOutputBytes,
	}
}

// ExecutorOptions returns the executor defaults matching s.
func (s SandboxConfig) ExecutorOptions() []executor.ExecutorOption {
	return []executor.ExecutorOption{
		executor.WithDefaultMaxDepth(s.MaxDepth),
		executor.WithDefaultTimeout(s.Timeout()),
		executor.WithDefaultMaxOutput(s.MaxOutputBytes),
	}
}

// LuaConfig sizes the Lua guest.
type LuaConfig struct {
	CacheSize     int `json:"cache_size" yaml:"cache_size"`           // Compiled scripts kept. 0 disables the cache. Override: PLUME_CACHE_SIZE.
	CallStackSize int `json:"call_stack_size" yaml:"call_stack_size"` // 0 = interpreter default.
	RegistrySize  int `json:"registry_size" yaml:"registry_size"`     // 0 = interpreter default.
	RegistryLimit int `json:"registry_limit" yaml:"registry_limit"`   // Registry growth cap. 0 = no growth.
}

// Options returns the guest options matching l.
func (l LuaConfig) Options() []lua.Option {
	opts := []lua.Option{lua.WithCacheSize(l.CacheSize)}
	if l.CallStackSize > 0 {
		opts = append(opts, lua.WithCallStackSize(l.CallStackSize))
	}
	if l.RegistrySize > 0 {
		opts = append(opts, lua.WithRegistrySize(l.RegistrySize, l.RegistryLimit))
	}
	return opts
}

// ServerConfig configures `plume serve`.
type ServerConfig struct {
	Addr         string `json:"addr" yaml:"addr"`                     // Default: ":8080". Override: PLUME_ADDR.
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes"` // Default: 1 MiB.
	Metrics      bool   `json:"metrics" yaml:"metrics"`               // Expose /metrics. Default: true.
	MaxQuota     uint64 `json:"max_quota" yaml:"max_quota"`           // Cap on a request's quota. 0 = no cap. Override: PLUME_MAX_QUOTA.
}

// LogConfig configures the zap logger of the CLI.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error. Default: info. Override: PLUME_LOG_LEVEL.
	Format string `json:"format" yaml:"format"` // "console" (default) or "json".
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Binding:        sandbox.DefaultBinding,
			Quota:          sandbox.DefaultQuota,
			MaxDepth:       wire.DefaultMaxDepth,
			MaxOutputBytes: executor.DefaultMaxOutputBytes,
		},
		Lua: LuaConfig{
			CacheSize: lua.DefaultCacheSize,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
			Metrics:      true,
			MaxQuota:     10_000_000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a JSON or YAML config file over the defaults and applies
// PLUME_* environment overrides. The format is detected by file
// extension: .yml/.yaml for YAML, everything else for JSON. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		resolved, err := resolvePath(path)
		if err != nil {
			return nil, fmt.Errorf("resolving config path %s: %w", path, err)
		}

		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", resolved, err)
		}

		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".yml", ".yaml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
			}
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv applies environment overrides. Env vars take precedence over
// config values.
func (c *Config) applyEnv() error {
	if v := os.Getenv("PLUME_BINDING"); v != "" {
		c.Sandbox.Binding = v
	}
	if v := os.Getenv("PLUME_QUOTA"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PLUME_QUOTA: %w", err)
		}
		c.Sandbox.Quota = n
	}
	if v := os.Getenv("PLUME_MAX_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLUME_MAX_DEPTH: %w", err)
		}
		c.Sandbox.MaxDepth = n
	}
	if v := os.Getenv("PLUME_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PLUME_TIMEOUT: %w", err)
		}
		c.Sandbox.TimeoutMS = int(d / time.Millisecond)
	}
	if v := os.Getenv("PLUME_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLUME_CACHE_SIZE: %w", err)
		}
		c.Lua.CacheSize = n
	}
	if v := os.Getenv("PLUME_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PLUME_MAX_QUOTA"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PLUME_MAX_QUOTA: %w", err)
		}
		c.Server.MaxQuota = n
	}
	if v := os.Getenv("PLUME_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c *Config) validate() error {
	if !identifier.MatchString(c.Sandbox.Binding) {
		return fmt.Errorf("sandbox.binding %q is not a valid identifier", c.Sandbox.Binding)
	}
	if c.Sandbox.MaxDepth <= 0 {
		return fmt.Errorf("sandbox.max_depth must be positive, got %d", c.Sandbox.MaxDepth)
	}
	if c.Sandbox.TimeoutMS < 0 {
		return fmt.Errorf("sandbox.timeout_ms must not be negative")
	}
	if c.Sandbox.MaxOutputBytes < 0 {
		return fmt.Errorf("sandbox.max_output_bytes must not be negative")
	}
	if c.Lua.CacheSize < 0 {
		return fmt.Errorf("lua.cache_size must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
