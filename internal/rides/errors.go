package rides

import "errors"

var (
	// ErrNotFound means the ride or driver does not exist.
	ErrNotFound = errors.New("rides: not found")
	// ErrConflict means the ride was not in the expected state for the
	// requested transition. Nothing was mutated.
	ErrConflict = errors.New("rides: transition conflict")
	// ErrForbidden means the actor's role or identity does not allow the
	// operation.
	ErrForbidden = errors.New("rides: forbidden")
	// ErrValidation covers bad input: missing labels, out-of-range
	// coordinates, empty chat text.
	ErrValidation = errors.New("rides: invalid input")
	// ErrUnpriced blocks assignment until distance and fare are computed.
	ErrUnpriced = errors.New("rides: ride has no computed distance/fare")
	// ErrDriverUnavailable means the chosen driver is not online.
	ErrDriverUnavailable = errors.New("rides: driver not available")
	// ErrDriverBlocked rejects any driver-side action while blocked.
	ErrDriverBlocked = errors.New("rides: driver is blocked")
)
