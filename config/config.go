// Package config loads rplayground settings from an optional YAML file and
// RPLAYGROUND_MCP_ prefixed environment variables, env taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "RPLAYGROUND_MCP_"

// Backend selects the interpreter implementation.
type Backend string

const (
	// BackendHost runs a native Rscript subprocess.
	BackendHost Backend = "host"
	// BackendWasm runs a WebAssembly R build inside the process.
	BackendWasm Backend = "wasm"
)

// Duration wraps time.Duration so YAML accepts "30s" style strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"'`)
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every tunable of the playground.
type Config struct {
	// SupportImageOutput exposes the plot destination helper to sessions
	// and returns captured images from calls.
	SupportImageOutput bool `yaml:"support_image_output"`

	Backend Backend `yaml:"backend"`

	// RscriptPath locates the interpreter for the host backend.
	RscriptPath string `yaml:"rscript_path"`

	// WasmModulePath locates the compiled R module for the wasm backend.
	WasmModulePath string `yaml:"wasm_module_path"`

	// WasmMemoryLimitPages caps guest memory in 64 KiB pages. Zero keeps
	// the runtime default.
	WasmMemoryLimitPages int `yaml:"wasm_memory_limit_pages"`

	IdleTimeout    Duration `yaml:"idle_timeout"`
	CallTimeout    Duration `yaml:"call_timeout"`
	StartupTimeout Duration `yaml:"startup_timeout"`

	QueueCapacity int `yaml:"queue_capacity"`

	// ScratchRoot is where per-session scratch directories are created.
	// Empty means the system temp directory.
	ScratchRoot string `yaml:"scratch_root"`

	RecreateOnCrash bool `yaml:"recreate_on_crash"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		SupportImageOutput: true,
		Backend:            BackendHost,
		RscriptPath:        "Rscript",
		IdleTimeout:        Duration(15 * time.Minute),
		CallTimeout:        Duration(2 * time.Minute),
		StartupTimeout:     Duration(30 * time.Second),
		QueueCapacity:      16,
		LogLevel:           "info",
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	envBool("SUPPORT_IMAGE_OUTPUT", &c.SupportImageOutput, &err)
	envString("RSCRIPT_PATH", &c.RscriptPath)
	envString("WASM_MODULE_PATH", &c.WasmModulePath)
	envInt("WASM_MEMORY_LIMIT_PAGES", &c.WasmMemoryLimitPages, &err)
	envDuration("IDLE_TIMEOUT", &c.IdleTimeout, &err)
	envDuration("CALL_TIMEOUT", &c.CallTimeout, &err)
	envDuration("STARTUP_TIMEOUT", &c.StartupTimeout, &err)
	envInt("QUEUE_CAPACITY", &c.QueueCapacity, &err)
	envString("SCRATCH_ROOT", &c.ScratchRoot)
	envBool("RECREATE_ON_CRASH", &c.RecreateOnCrash, &err)
	envString("LOG_LEVEL", &c.LogLevel)

	if v, ok := os.LookupEnv(EnvPrefix + "BACKEND"); ok {
		c.Backend = Backend(strings.ToLower(strings.TrimSpace(v)))
	}
	return err
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendHost, BackendWasm:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendHost, BackendWasm)
	}
	if c.Backend == BackendWasm && c.WasmModulePath == "" {
		return fmt.Errorf("wasm backend needs wasm_module_path (or %sWASM_MODULE_PATH)", EnvPrefix)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity)
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		*dst = v
	}
}

func envBool(key string, dst *bool, errp *error) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || *errp != nil {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*errp = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = b
}

func envInt(key string, dst *int, errp *error) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || *errp != nil {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errp = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = n
}

func envDuration(key string, dst *Duration, errp *error) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || *errp != nil {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errp = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		return
	}
	*dst = Duration(d)
}
