/*
errors.go - Centralized error types for the fiscal engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The orchestration and API layers wrap these errors with period and
  employee context.

ERROR CATEGORIES:
  1. Configuration errors - bracket table or bonus parameters unusable
  2. Lifecycle errors    - finalize called twice, record missing
  3. Ledger errors       - reads from the external ledgers failed

USAGE:
  Callers classify with errors.Is():

    if errors.Is(err, fiscal.ErrAlreadyFinalized) {
        // report, no state changed
    }

SEE ALSO:
  - brackets.go: returns ConfigurationError on non-exhaustive tables
  - weekly/orchestrator.go: wraps ledger failures with ErrLedgerUnavailable
*/
package fiscal

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration indicates the bracket table or bonus parameters are
	// invalid. Fatal for the current run; nothing is written.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrAlreadyFinalized is returned when finalize is called on a period
	// that is already finalized, or calculate on a finalized period.
	// Recoverable; no state change occurs.
	ErrAlreadyFinalized = errors.New("period already finalized")

	// ErrRecordNotFound is returned when an operation requires an existing
	// weekly record that has not been calculated yet.
	ErrRecordNotFound = errors.New("weekly record not found")

	// ErrLedgerUnavailable indicates an external ledger read failed. The run
	// aborts with nothing written and is safe to retry.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError describes a setup invariant violation: a revenue value
// no bracket covers, or a missing bonus parameter.
type ConfigurationError struct {
	Field  string // parameter or bracket description
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// AlreadyFinalizedError reports a repeated finalize with the period attached.
type AlreadyFinalizedError struct {
	PeriodStart Date
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("period %s already finalized", e.PeriodStart)
}

func (e *AlreadyFinalizedError) Unwrap() error { return ErrAlreadyFinalized }

// LedgerError wraps a failed external read with enough context to retry.
type LedgerError struct {
	Ledger      string // "sales", "services", "employees"
	PeriodStart Date
	EmployeeID  string // empty for period-wide reads
	Err         error
}

func (e *LedgerError) Error() string {
	if e.EmployeeID != "" {
		return fmt.Sprintf("%s ledger read failed for employee %s in period %s: %v",
			e.Ledger, e.EmployeeID, e.PeriodStart, e.Err)
	}
	return fmt.Sprintf("%s ledger read failed for period %s: %v", e.Ledger, e.PeriodStart, e.Err)
}

func (e *LedgerError) Unwrap() error { return ErrLedgerUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfiguration returns true for setup invariant violations.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsRetryable returns true if the operation might succeed on retry.
// Every calculation is an idempotent upsert, so ledger outages are retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable)
}

// IsClientError returns true if the error is due to the caller's request
// rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrRecordNotFound)
}
