package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/ledgerview/ledgerview/remote"
)

// CLIError is an error shown to the user: what failed, why, and what to try
// next. Underlying keeps the original error reachable for errors.Is.
type CLIError struct {
	Operation   string
	Cause       string
	Details     string
	Suggestions []string
	Underlying  error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	op := e.Operation
	if op == "" {
		op = "complete the operation"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Failed to %s", op)
	if e.Cause != "" {
		fmt.Fprintf(&b, ": %s", e.Cause)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for i, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, s)
		}
	}
	return b.String()
}

// Unwrap exposes the underlying error
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewValidationError creates an error for validation failures
func NewValidationError(operation, field, value string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("invalid %s: %q", field, value),
		Suggestions: suggestions,
	}
}

// NewNotFoundError creates an error for a record the store does not have
func NewNotFoundError(operation, kind, id string, underlying error, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("%s %s does not exist", kind, id),
		Suggestions: suggestions,
		Underlying:  underlying,
	}
}

// NewConfigError creates an error for configuration issues
func NewConfigError(operation, issue string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("configuration error: %s", issue),
		Suggestions: suggestions,
	}
}

// NewStoreError creates an error for store-related issues
func NewStoreError(operation string, underlying error, suggestions ...string) *CLIError {
	cause := "store operation failed"
	details := ""

	if underlying != nil {
		details = underlying.Error()

		errStr := strings.ToLower(underlying.Error())
		switch {
		case errors.Is(underlying, remote.ErrNotFound):
			cause = "record not found"
		case errors.Is(underlying, remote.ErrInvalidRecord):
			cause = "invalid data provided"
		case strings.Contains(errStr, "no such file"):
			cause = "database file not found"
		case strings.Contains(errStr, "permission denied"):
			cause = "insufficient permissions to access database"
		case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "acquire lock"):
			cause = "database is currently locked by another process"
		}
	}

	return &CLIError{
		Operation:   operation,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
		Underlying:  underlying,
	}
}

// WrapError wraps an existing error with CLI-friendly context
func WrapError(operation string, err error, suggestions ...string) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return cliErr
	}

	if errors.Is(err, remote.ErrNotFound) && len(suggestions) == 0 {
		suggestions = []string{CommonSuggestions.CheckID}
	}
	return NewStoreError(operation, err, suggestions...)
}

// CommonSuggestions are the hints shared by several commands
var (
	CommonSuggestions = struct {
		CheckKind   string
		CheckDB     string
		CheckID     string
		CheckConfig string
		CheckFlags  string
		RunHelp     string
	}{
		CheckKind:   "Use one of: invoice, receipt, credit_note, briefing",
		CheckDB:     "Verify --db flag points to a valid store file",
		CheckID:     "Verify the record ID exists (try 'list' command first)",
		CheckConfig: "Check your configuration file or environment variables",
		CheckFlags:  "Check command line flags and their values",
		RunHelp:     "Run command with --help for usage information",
	}
)
