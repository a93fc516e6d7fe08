// Package config loads replcore-host's runtime configuration: defaults,
// then a TOML file, then environment overrides — the same precedence as
// the teacher's Load().
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	History   HistoryConfig   `toml:"history"`
	Session   SessionConfig   `toml:"session"`
	Sandbox   SandboxConfig   `toml:"sandbox"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// HistoryConfig holds history-cap and truncation sizes (§3/§4.4). The core
// package does not read it; it uses its own fixed constants.
type HistoryConfig struct {
	MaxTurns        int `toml:"max_turns"`
	MaxCaptureChars int `toml:"max_capture_chars"`
	MaxMessageChars int `toml:"max_message_chars"`
}

// SessionConfig controls the reference host's default session behavior.
type SessionConfig struct {
	Headless            bool `toml:"headless"`
	MaxParallelDispatch int  `toml:"max_parallel_dispatch"`
}

// SandboxConfig configures tools/shell's Docker-backed ShellRunner.
type SandboxConfig struct {
	Image      string `toml:"image"`
	WorkingDir string `toml:"working_dir"`
	TimeoutSec int    `toml:"timeout_sec"`
	MemoryMB   int64  `toml:"memory_mb"`
}

// SnapshotConfig selects and configures the SnapshotStore backend used by
// the reference host to persist session state across process restarts.
type SnapshotConfig struct {
	Backend string `toml:"backend"` // "sqlite" | "postgres" | "" (none)
	Path    string `toml:"path"`
	DSN     string `toml:"dsn"`
}

// TelemetryConfig configures the OTEL exporter wired by internal/telemetry.
type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	ServiceName  string `toml:"service_name"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	return Config{
		History: HistoryConfig{
			MaxTurns:        2000,
			MaxCaptureChars: 20000,
			MaxMessageChars: 20000,
		},
		Session: SessionConfig{
			Headless:            true,
			MaxParallelDispatch: 10,
		},
		Sandbox: SandboxConfig{
			Image:      "alpine:3.20",
			WorkingDir: filepath.Join(home, "replcore-workspace"),
			TimeoutSec: 30,
			MemoryMB:   256,
		},
		Snapshot: SnapshotConfig{
			Backend: "sqlite",
			Path:    "replcore.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "replcore-host",
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "replcore.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("REPLCORE_SNAPSHOT_DSN"); v != "" {
		cfg.Snapshot.DSN = v
	}
	if v := os.Getenv("REPLCORE_SNAPSHOT_BACKEND"); v != "" {
		cfg.Snapshot.Backend = v
	}
	if v := os.Getenv("REPLCORE_SANDBOX_IMAGE"); v != "" {
		cfg.Sandbox.Image = v
	}
	if v := os.Getenv("REPLCORE_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if os.Getenv("REPLCORE_TELEMETRY_ENABLED") == "true" || os.Getenv("REPLCORE_TELEMETRY_ENABLED") == "1" {
		cfg.Telemetry.Enabled = true
	}
	if os.Getenv("REPLCORE_HEADLESS") == "false" || os.Getenv("REPLCORE_HEADLESS") == "0" {
		cfg.Session.Headless = false
	}

	return cfg
}
