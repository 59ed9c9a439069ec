package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultsRoundTripThroughViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Retry.MaxAttempts != want.Retry.MaxAttempts {
		t.Errorf("Retry.MaxAttempts = %d, want %d", cfg.Retry.MaxAttempts, want.Retry.MaxAttempts)
	}
	if cfg.Synthesis.SecurityCap != want.Synthesis.SecurityCap {
		t.Errorf("Synthesis.SecurityCap = %d, want %d", cfg.Synthesis.SecurityCap, want.Synthesis.SecurityCap)
	}
	if cfg.Report.Format != want.Report.Format {
		t.Errorf("Report.Format = %q, want %q", cfg.Report.Format, want.Report.Format)
	}
	if len(cfg.Analysis.DocGlobs) != len(want.Analysis.DocGlobs) {
		t.Errorf("Analysis.DocGlobs = %v, want %v", cfg.Analysis.DocGlobs, want.Analysis.DocGlobs)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	viper.Set("retry.max_attempts", 0)

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want validation failure for zero retry budget")
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("synthesis:\n  variance_threshold: 3\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Synthesis.VarianceThreshold != 3 {
		t.Errorf("VarianceThreshold = %d, want 3", cfg.Synthesis.VarianceThreshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxAttempts != Default().Retry.MaxAttempts {
		t.Errorf("Retry.MaxAttempts = %d, want default %d", cfg.Retry.MaxAttempts, Default().Retry.MaxAttempts)
	}
}

func TestDurationHelpers(t *testing.T) {
	e := EngineConfig{StageTimeoutSeconds: 90, RunTimeoutSeconds: 600}
	if got := e.StageTimeout(); got != 90*time.Second {
		t.Errorf("StageTimeout() = %v, want %v", got, 90*time.Second)
	}
	if got := e.RunTimeout(); got != 600*time.Second {
		t.Errorf("RunTimeout() = %v, want %v", got, 600*time.Second)
	}

	r := RetryConfig{BackoffMs: 250}
	if got := r.Backoff(); got != 250*time.Millisecond {
		t.Errorf("Backoff() = %v, want %v", got, 250*time.Millisecond)
	}
}

func TestConfigDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "tribunal") {
		t.Errorf("ConfigDir() = %q, want %q", got, filepath.Join("/tmp/xdg", "tribunal"))
	}
}
