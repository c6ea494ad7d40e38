package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zygi/r-playground-mcp/config"
	"github.com/zygi/r-playground-mcp/interp/host"
	"github.com/zygi/r-playground-mcp/interp/wasm"
	"github.com/zygi/r-playground-mcp/session"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "rplayground [file]",
	Short: "Stateful R execution sessions",
	Long: `rplayground - Run R code in isolated, stateful sessions.

Each session owns one R interpreter: variables, loaded packages and options
persist across calls within a session and are invisible to every other
session. Run code one-shot, interactively, or serve sessions to MCP clients
over stdio.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun, // Default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("backend", "", "Interpreter backend: host or wasm")
	rootCmd.PersistentFlags().String("rscript", "", "Path to the Rscript binary (host backend)")
	rootCmd.PersistentFlags().String("wasm-module", "", "Path to the R wasm module (wasm backend)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the wasm compilation cache")

	addRunFlags(rootCmd)
}

// loadConfig merges the config file, environment and command-line flags,
// flags winning, and applies the log level.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = config.Backend(v)
	}
	if v, _ := cmd.Flags().GetString("rscript"); v != "" {
		cfg.RscriptPath = v
	}
	if v, _ := cmd.Flags().GetString("wasm-module"); v != "" {
		cfg.WasmModulePath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	switch cfg.Backend {
	case config.BackendHost, config.BackendWasm:
	default:
		return cfg, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if cfg.Backend == config.BackendWasm && cfg.WasmModulePath == "" {
		return cfg, fmt.Errorf("wasm backend needs --wasm-module")
	}
	return cfg, nil
}

// buildFactory returns the interpreter factory for the configured backend
// and a cleanup releasing backend-wide resources.
func buildFactory(cmd *cobra.Command, cfg config.Config) (session.Factory, func(), error) {
	switch cfg.Backend {
	case config.BackendWasm:
		noCache, _ := cmd.Flags().GetBool("no-cache")
		var opts []wasm.RuntimeOption
		if !noCache {
			opts = append(opts, wasm.WithDiskCache())
		}
		if cfg.WasmMemoryLimitPages > 0 {
			opts = append(opts, wasm.WithMemoryLimit(uint32(cfg.WasmMemoryLimitPages)))
		}
		rt, err := wasm.NewRuntime(cfg.WasmModulePath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return rt.Factory(), func() { rt.Close() }, nil
	default:
		return host.Factory(host.WithRscriptPath(cfg.RscriptPath)), func() {}, nil
	}
}

func managerOptions(cfg config.Config) []session.Option {
	return []session.Option{
		session.WithIdleTimeout(cfg.IdleTimeout.Std()),
		session.WithCallTimeout(cfg.CallTimeout.Std()),
		session.WithStartupTimeout(cfg.StartupTimeout.Std()),
		session.WithQueueCapacity(cfg.QueueCapacity),
		session.WithImageOutput(cfg.SupportImageOutput),
		session.WithScratchRoot(cfg.ScratchRoot),
		session.WithRecreateOnCrash(cfg.RecreateOnCrash),
	}
}
