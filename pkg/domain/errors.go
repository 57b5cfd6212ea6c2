package domain

import "errors"

// ErrSnapshotNotFound is returned when no snapshot exists for a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrMalformedSnapshot is returned when a payload cannot be decoded into a snapshot.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// ErrStaleEpoch is returned when an action carries an epoch that a reset has
// already superseded.
var ErrStaleEpoch = errors.New("stale epoch")

// Validation failures of the lifecycle actions.
var (
	ErrInvalidIntent           = errors.New("invalid intent")
	ErrWinnerNotInBids         = errors.New("winner is not among the bids")
	ErrWinnerNotQualified      = errors.New("winner is not qualified")
	ErrExecutionAlreadyStarted = errors.New("execution already started")
	ErrStepRegression          = errors.New("step status cannot move backwards")
	ErrStepOutOfOrder          = errors.New("step completed before its predecessor")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrFinalResultSet          = errors.New("final result already set")
)

// IsValidation reports whether err is one of the action validation failures.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidIntent, ErrWinnerNotInBids, ErrWinnerNotQualified,
		ErrExecutionAlreadyStarted, ErrStepRegression, ErrStepOutOfOrder,
		ErrInvalidStatus, ErrFinalResultSet,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
