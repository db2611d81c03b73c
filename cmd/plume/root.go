package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/internal/config"
	"github.com/mminer/plume/language/lua"
)

var rootCmd = &cobra.Command{
	Use:   "plume [file]",
	Short: "Lua sandbox with a msgpack value interface",
	Long: `plume - Run untrusted Lua scripts against structured input.

A script sees one input value bound to a global (default "tbl") and
returns one value. Values cross the sandbox boundary in msgpack wire
format; the CLI converts them from and to JSON, YAML and CBOR.

Scripts can use the base library, string, table and math. Nothing else
is reachable: no io, os, require or load. Every run is bounded by a
step quota.`,
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: setup,
	RunE:              runRun, // Default to run command behavior
	SilenceUsage:      true,
}

var (
	cfg    *config.Config
	logger = zap.NewNop()
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the compiled script cache")

	// Add run-specific flags to root (for default command)
	addRunFlags(rootCmd)
}

// setup loads configuration and installs the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		loaded.Log.Level = level
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		loaded.Lua.CacheSize = 0
	}

	l, err := newLogger(loaded.Log)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = l
	executor.SetLogger(l)
	lua.SetLogger(l)
	return nil
}

// currentConfig returns the loaded configuration, or the defaults when
// setup has not run.
func currentConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	if lc.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// newExecutor builds the Lua guest and its executor from c. reg may be nil.
func newExecutor(c *config.Config, reg prometheus.Registerer, precompile ...string) (*executor.Executor, *lua.Lua, error) {
	guest := lua.New(c.Lua.Options()...)

	opts := c.Sandbox.ExecutorOptions()
	opts = append(opts,
		executor.WithLogger(logger),
		executor.WithMetrics(executor.NewMetrics(reg)),
	)
	if len(precompile) > 0 {
		opts = append(opts, executor.WithPrecompile(precompile...))
	}

	exec, err := executor.New(guest, opts...)
	if err != nil {
		return nil, nil, err
	}
	return exec, guest, nil
}
