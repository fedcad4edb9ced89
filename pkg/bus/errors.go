package bus

import "errors"

// Errors returned by the public API. Check with errors.Is.
var (
	// ErrInvalidConfig is returned by NewClient when options fail
	// validation or name an unregistered adapter or encoder.
	ErrInvalidConfig = errors.New("wirebus: invalid configuration")

	// ErrDestroyed is returned when an operation requires a live client.
	ErrDestroyed = errors.New("wirebus: client destroyed")
)
