package attendance

import "errors"

// Attendance domain errors
var (
	ErrAttendanceNotFound      = errors.New("attendance record not found")
	ErrSessionPairingAmbiguous = errors.New("clock events cannot be paired into sessions")
	ErrInvalidSession          = errors.New("work session ends before it starts")
	ErrEmptyImport             = errors.New("import contains no rows")
)
