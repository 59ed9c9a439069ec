package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Tribunal configuration
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Report    ReportConfig    `mapstructure:"report"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// EngineConfig controls run scheduling and timeouts
type EngineConfig struct {
	// StageTimeoutSeconds bounds each stage individually (0 = no limit)
	StageTimeoutSeconds int `mapstructure:"stage_timeout_seconds"`
	// RunTimeoutSeconds bounds the whole audit run (0 = no limit)
	RunTimeoutSeconds int `mapstructure:"run_timeout_seconds"`
}

// RetryConfig controls the evaluator retry budget
type RetryConfig struct {
	// MaxAttempts is the total attempt budget per judge call before a
	// synthetic fallback opinion is substituted (default: 3)
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffMs is the base backoff between attempts, scaled linearly by
	// the attempt number (default: 250)
	BackoffMs int `mapstructure:"backoff_ms"`
}

// SynthesisConfig controls the verdict rule constants.
// Defaults mirror verdict.DefaultConfig and should be kept in sync.
type SynthesisConfig struct {
	// VarianceThreshold flags dissent when the judge score spread exceeds it (default: 2)
	VarianceThreshold int `mapstructure:"variance_threshold"`
	// ScoreDivisor maps the 0-10 judge scale onto the 1-5 final scale (default: 2)
	ScoreDivisor float64 `mapstructure:"score_divisor"`
	// SecurityCap is the highest final score for a criterion with a
	// confirmed security defect (default: 3)
	SecurityCap int `mapstructure:"security_cap"`
	// CollaborationCap is the highest final score when the commit history
	// shows a single author (default: 3)
	CollaborationCap int `mapstructure:"collaboration_cap"`
	// TechLeadWeight is the tech lead's vote weight on architecture
	// criteria (default: 2)
	TechLeadWeight int `mapstructure:"techlead_weight"`
}

// AnalysisConfig controls the built-in analyzers
type AnalysisConfig struct {
	// GitHistoryLimit caps how many commits the repository analyzer reads (default: 200)
	GitHistoryLimit int `mapstructure:"git_history_limit"`
	// DocGlobs are the documentation files the doc analyst scans
	DocGlobs []string `mapstructure:"doc_globs"`
	// MaxDocBytes caps how much of each document is read (default: 262144)
	MaxDocBytes int64 `mapstructure:"max_doc_bytes"`
}

// ReportConfig controls report output
type ReportConfig struct {
	// Format is the report output format: "markdown", "json", or "both" (default: "both")
	Format string `mapstructure:"format"`
	// OutputDir is where report files are written (default: ".tribunal")
	OutputDir string `mapstructure:"output_dir"`
}

// LoggingConfig controls structured logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for the log file; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// TUIConfig controls the live progress display
type TUIConfig struct {
	// Enabled turns on the interactive progress view (default: false)
	Enabled bool `mapstructure:"enabled"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			StageTimeoutSeconds: 120,
			RunTimeoutSeconds:   600,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffMs:   250,
		},
		Synthesis: SynthesisConfig{
			VarianceThreshold: 2,
			ScoreDivisor:      2,
			SecurityCap:       3,
			CollaborationCap:  3,
			TechLeadWeight:    2,
		},
		Analysis: AnalysisConfig{
			GitHistoryLimit: 200,
			DocGlobs:        []string{"README*", "docs/**/*.md", "*.md"},
			MaxDocBytes:     256 * 1024,
		},
		Report: ReportConfig{
			Format:    "both",
			OutputDir: ".tribunal",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
		TUI: TUIConfig{
			Enabled: false,
		},
	}
}

// StageTimeout returns the per-stage timeout as a time.Duration (0 means disabled)
func (e *EngineConfig) StageTimeout() time.Duration {
	return time.Duration(e.StageTimeoutSeconds) * time.Second
}

// RunTimeout returns the run timeout as a time.Duration (0 means disabled)
func (e *EngineConfig) RunTimeout() time.Duration {
	return time.Duration(e.RunTimeoutSeconds) * time.Second
}

// Backoff returns the retry backoff as a time.Duration
func (r *RetryConfig) Backoff() time.Duration {
	return time.Duration(r.BackoffMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Engine defaults
	viper.SetDefault("engine.stage_timeout_seconds", defaults.Engine.StageTimeoutSeconds)
	viper.SetDefault("engine.run_timeout_seconds", defaults.Engine.RunTimeoutSeconds)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.backoff_ms", defaults.Retry.BackoffMs)

	// Synthesis defaults
	viper.SetDefault("synthesis.variance_threshold", defaults.Synthesis.VarianceThreshold)
	viper.SetDefault("synthesis.score_divisor", defaults.Synthesis.ScoreDivisor)
	viper.SetDefault("synthesis.security_cap", defaults.Synthesis.SecurityCap)
	viper.SetDefault("synthesis.collaboration_cap", defaults.Synthesis.CollaborationCap)
	viper.SetDefault("synthesis.techlead_weight", defaults.Synthesis.TechLeadWeight)

	// Analysis defaults
	viper.SetDefault("analysis.git_history_limit", defaults.Analysis.GitHistoryLimit)
	viper.SetDefault("analysis.doc_globs", defaults.Analysis.DocGlobs)
	viper.SetDefault("analysis.max_doc_bytes", defaults.Analysis.MaxDocBytes)

	// Report defaults
	viper.SetDefault("report.format", defaults.Report.Format)
	viper.SetDefault("report.output_dir", defaults.Report.OutputDir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// TUI defaults
	viper.SetDefault("tui.enabled", defaults.TUI.Enabled)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tribunal")
	}
	// Fall back to ~/.config/tribunal
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tribunal"
	}
	return filepath.Join(home, ".config", "tribunal")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
