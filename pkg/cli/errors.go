package cli

import (
	"errors"
	"fmt"

	"mercator-hq/prognos/pkg/config"
	"mercator-hq/prognos/pkg/prediction"
)

// Exit codes returned by the prognos command.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitInvalidInput  = 3
	ExitPrivacy       = 4
	ExitNotFound      = 5
	ExitUnavailable   = 6
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to a process exit code. Prediction faults get distinct
// codes so scripts can tell a PHI rejection from an unreachable runtime.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		cfgErr      *ConfigError
		validateErr config.ValidationError
	)
	if errors.As(err, &cfgErr) || errors.As(err, &validateErr) {
		return ExitConfiguration
	}

	switch prediction.FaultKind(err) {
	case "configuration":
		return ExitConfiguration
	case "validation":
		return ExitInvalidInput
	case "data_privacy":
		return ExitPrivacy
	case "resource_not_found", "model_not_found":
		return ExitNotFound
	case "service_connection":
		return ExitUnavailable
	default:
		return ExitFailure
	}
}
