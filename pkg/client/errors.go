package client

import "errors"

var (
	// ErrDaemonNotRunning is returned when nothing listens on the daemon address
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the daemon address cannot be reached
	// by the current user
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when the daemon answers 404, for example for an
	// unknown history id or report index
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the daemon answers 409: an analysis is
	// already running, there are no active results, or the calibration is in
	// the wrong phase
	ErrConflict = errors.New("conflict")

	// ErrModelUnavailable is returned when the daemon has no analysis model
	// configured
	ErrModelUnavailable = errors.New("analysis model unavailable")
)
