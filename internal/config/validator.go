package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "retry.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidReportFormats returns the list of valid report output formats
func ValidReportFormats() []string {
	return []string{"markdown", "json", "both"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateSynthesis()...)
	errors = append(errors, c.validateAnalysis()...)
	errors = append(errors, c.validateReport()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateEngine validates the EngineConfig
func (c *Config) validateEngine() []ValidationError {
	var errors []ValidationError

	if c.Engine.StageTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.stage_timeout_seconds",
			Value:   c.Engine.StageTimeoutSeconds,
			Message: "must be non-negative (0 disables the limit)",
		})
	}
	if c.Engine.RunTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.run_timeout_seconds",
			Value:   c.Engine.RunTimeoutSeconds,
			Message: "must be non-negative (0 disables the limit)",
		})
	}
	// A run shorter than one of its stages cannot finish.
	if c.Engine.RunTimeoutSeconds > 0 && c.Engine.StageTimeoutSeconds > c.Engine.RunTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "engine.stage_timeout_seconds",
			Value:   c.Engine.StageTimeoutSeconds,
			Message: fmt.Sprintf("must not exceed run_timeout_seconds (%d)", c.Engine.RunTimeoutSeconds),
		})
	}

	return errors
}

// validateRetry validates the RetryConfig
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: "must be at least 1",
		})
	}

	const maxAttemptsLimit = 10
	if c.Retry.MaxAttempts > maxAttemptsLimit {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: fmt.Sprintf("exceeds maximum of %d", maxAttemptsLimit),
		})
	}

	if c.Retry.BackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.backoff_ms",
			Value:   c.Retry.BackoffMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateSynthesis validates the SynthesisConfig
func (c *Config) validateSynthesis() []ValidationError {
	var errors []ValidationError

	if c.Synthesis.VarianceThreshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "synthesis.variance_threshold",
			Value:   c.Synthesis.VarianceThreshold,
			Message: "must be non-negative",
		})
	}
	if c.Synthesis.ScoreDivisor <= 0 {
		errors = append(errors, ValidationError{
			Field:   "synthesis.score_divisor",
			Value:   c.Synthesis.ScoreDivisor,
			Message: "must be positive",
		})
	}
	// Caps live on the final 1-5 scale.
	if c.Synthesis.SecurityCap < 1 || c.Synthesis.SecurityCap > 5 {
		errors = append(errors, ValidationError{
			Field:   "synthesis.security_cap",
			Value:   c.Synthesis.SecurityCap,
			Message: "must be between 1 and 5",
		})
	}
	if c.Synthesis.CollaborationCap < 1 || c.Synthesis.CollaborationCap > 5 {
		errors = append(errors, ValidationError{
			Field:   "synthesis.collaboration_cap",
			Value:   c.Synthesis.CollaborationCap,
			Message: "must be between 1 and 5",
		})
	}
	if c.Synthesis.TechLeadWeight < 1 {
		errors = append(errors, ValidationError{
			Field:   "synthesis.techlead_weight",
			Value:   c.Synthesis.TechLeadWeight,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateAnalysis validates the AnalysisConfig
func (c *Config) validateAnalysis() []ValidationError {
	var errors []ValidationError

	if c.Analysis.GitHistoryLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.git_history_limit",
			Value:   c.Analysis.GitHistoryLimit,
			Message: "must be at least 1",
		})
	}
	if c.Analysis.MaxDocBytes < 1024 {
		errors = append(errors, ValidationError{
			Field:   "analysis.max_doc_bytes",
			Value:   c.Analysis.MaxDocBytes,
			Message: "must be at least 1024",
		})
	}

	return errors
}

// validateReport validates the ReportConfig
func (c *Config) validateReport() []ValidationError {
	var errors []ValidationError

	if c.Report.Format != "" && !slices.Contains(ValidReportFormats(), c.Report.Format) {
		errors = append(errors, ValidationError{
			Field:   "report.format",
			Value:   c.Report.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidReportFormats(), ", ")),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
