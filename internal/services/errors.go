package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced user, project, investment or transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation's precondition does not hold.
	ErrInvalidState = errors.New("invalid state")

	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDriftDetected marks a stored wallet balance that disagrees with the ledger.
	ErrDriftDetected = errors.New("wallet drift detected")

	// ErrJobRunning is returned when another instance holds the reconciliation lock.
	ErrJobRunning = errors.New("reconciliation already running")
)

// DriftError carries the wallets whose stored balance differs from the ledger expectation.
// It matches ErrDriftDetected with errors.Is.
type DriftError struct {
	Reports []DriftReport
}

func (e *DriftError) Error() string {
	if len(e.Reports) == 1 {
		r := e.Reports[0]
		return fmt.Sprintf("%s: user %d stored %s expected %s", ErrDriftDetected, r.UserId, r.Stored, r.Expected)
	}
	return fmt.Sprintf("%s: %d wallets", ErrDriftDetected, len(e.Reports))
}

func (e *DriftError) Is(target error) bool {
	return target == ErrDriftDetected
}
