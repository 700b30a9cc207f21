package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/dispatcher/internal/detect"
	"github.com/Iron-Ham/dispatcher/internal/errors"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "dispatch.max_polls")
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

// Is reports validation failures as invalid input.
func (e ValidationErrors) Is(target error) bool {
	return target == errors.ErrInvalidInput
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidPolicies returns the list of valid completion policies
func ValidPolicies() []string {
	return []string{detect.PolicySplit.String(), detect.PolicyLegacy.String()}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDispatch()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateTmux()...)
	errors = append(errors, c.validateMarkers()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

func (c *Config) validateDispatch() []ValidationError {
	var errors []ValidationError
	d := c.Dispatch

	if d.PollIntervalSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.poll_interval_seconds",
			Value:   d.PollIntervalSeconds,
			Message: "must be positive",
		})
	}

	if d.StabilityThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.stability_threshold",
			Value:   d.StabilityThreshold,
			Message: "must be at least 1",
		})
	}

	// Zero is allowed and means "follow stability_threshold"
	if d.AbsenceThreshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.absence_threshold",
			Value:   d.AbsenceThreshold,
			Message: "must be non-negative",
		})
	}

	if d.TailPreviewLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.tail_preview_lines",
			Value:   d.TailPreviewLines,
			Message: "must be non-negative",
		})
	}

	if d.MaxPolls < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_polls",
			Value:   d.MaxPolls,
			Message: "must be non-negative (0 = unbounded)",
		})
	}

	if d.StartupDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.startup_delay_ms",
			Value:   d.StartupDelayMs,
			Message: "must be non-negative",
		})
	}

	if _, ok := detect.ParsePolicy(d.Policy); !ok {
		errors = append(errors, ValidationError{
			Field:   "dispatch.policy",
			Value:   d.Policy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPolicies(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Agent.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.command",
			Value:   c.Agent.Command,
			Message: "must not be empty",
		})
	}

	if strings.TrimSpace(c.Agent.Binary) == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.binary",
			Value:   c.Agent.Binary,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateTmux() []ValidationError {
	var errors []ValidationError

	if strings.ContainsAny(c.Tmux.Socket, "/ \t") {
		errors = append(errors, ValidationError{
			Field:   "tmux.socket",
			Value:   c.Tmux.Socket,
			Message: "must be a bare socket name without slashes or whitespace",
		})
	}

	const minWidth, minHeight = 20, 5
	if c.Tmux.Width < minWidth {
		errors = append(errors, ValidationError{
			Field:   "tmux.width",
			Value:   c.Tmux.Width,
			Message: fmt.Sprintf("must be at least %d", minWidth),
		})
	}
	if c.Tmux.Height < minHeight {
		errors = append(errors, ValidationError{
			Field:   "tmux.height",
			Value:   c.Tmux.Height,
			Message: fmt.Sprintf("must be at least %d", minHeight),
		})
	}

	if c.Tmux.HistoryLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "tmux.history_limit",
			Value:   c.Tmux.HistoryLimit,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMarkers() []ValidationError {
	if _, err := c.Markers.Spec().Compile(); err != nil {
		return []ValidationError{{
			Field:   "markers",
			Value:   c.Markers,
			Message: err.Error(),
		}}
	}
	return nil
}

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

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Paths.TranscriptDir) == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.transcript_dir",
			Value:   c.Paths.TranscriptDir,
			Message: "must not be empty",
		})
	}

	return errors
}
