/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - malformed month keys, inverted periods
  2. Reference errors - missing payments, audit exceptions or scenarios
  3. Configuration errors - malformed tier JSON (recovered, never returned
     from engine calculations; exposed so loaders can log them)
  4. Lifecycle errors - superseded or not-yet-computed derived state

USAGE:
    if errors.Is(err, generic.ErrInvalidMonthKey) {
        // 400 to the caller
    }

SEE ALSO:
  - factory/settings.go: Recovers ErrMalformedTiers to an empty tier list
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidMonthKey is returned when a month key is not "YYYY-MM".
	ErrInvalidMonthKey = errors.New("invalid month key")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrExceptionNotFound is returned when removing an unknown audit exception.
	ErrExceptionNotFound = errors.New("audit exception not found")

	// ErrDuplicateException is returned when a payment is already suppressed.
	ErrDuplicateException = errors.New("payment already has an audit exception")

	// ErrMalformedTiers marks tier configuration that could not be decoded.
	ErrMalformedTiers = errors.New("malformed tier configuration")

	// ErrScenarioNotFound is returned when loading an unknown demo scenario.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrSuperseded is returned by a recompute that a newer trigger replaced.
	ErrSuperseded = errors.New("recompute superseded by a newer trigger")

	// ErrNotComputed is returned when derived state is requested before the
	// first successful recompute.
	ErrNotComputed = errors.New("derived state not computed yet")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MonthKeyError reports the rejected input.
type MonthKeyError struct {
	Input string
}

func (e *MonthKeyError) Error() string {
	return fmt.Sprintf("invalid month key %q (want YYYY-MM)", e.Input)
}

func (e *MonthKeyError) Unwrap() error {
	return ErrInvalidMonthKey
}

// TierConfigError reports which tier list failed to decode and why.
type TierConfigError struct {
	List string // "daily" or "monthly"
	Err  error
}

func (e *TierConfigError) Error() string {
	return fmt.Sprintf("%s tiers: %v", e.List, e.Err)
}

func (e *TierConfigError) Unwrap() []error {
	return []error{ErrMalformedTiers, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMonthKey) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrDuplicateException)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrExceptionNotFound) ||
		errors.Is(err, ErrScenarioNotFound)
}
