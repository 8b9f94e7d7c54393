/*
errors.go - Error types for settlement computation

PURPOSE:
  All calculator errors in one place. The calculator performs no I/O, so
  every failure is a precondition violation reported synchronously: either
  the input is invalid or the configuration cannot support a computation.

USAGE:
  Callers branch with errors.Is / errors.As:

    if errors.Is(err, settlement.ErrInvalidInput) { ... 400 ... }
    if errors.Is(err, settlement.ErrConfig)       { ... 500 ... }
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned when a weekly input fails validation
	// (negative income or expenses, income below expenses).
	ErrInvalidInput = errors.New("invalid settlement input")

	// ErrConfig is returned when the share table or constants are
	// missing or malformed. Fatal: no computation may proceed.
	ErrConfig = errors.New("invalid settlement configuration")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError reports which input field was rejected and why.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// ConfigError reports which configuration field is unusable.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bad configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }
