package calibration

var (
	ErrNoSession         = &calibrationError{"no calibration session open"}
	ErrSessionClosed     = &calibrationError{"calibration session already finished"}
	ErrNothingToReset    = &calibrationError{"no points to reset"}
	ErrNotReady          = &calibrationError{"calibration needs 3 points before it can be confirmed"}
	ErrInvalidKnownAngle = &calibrationError{"known angle must be a number"}
)

type calibrationError struct{ msg string }

func (e *calibrationError) Error() string { return e.msg }
