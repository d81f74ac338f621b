package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Validation failures are reported to the originating caller only.
	ErrEmptyUser = fmt.Errorf("user is required")
	ErrEmptyText = fmt.Errorf("text is required")

	// ErrDecode marks a malformed inbound frame (bad JSON, unknown type,
	// payload of the wrong shape).
	ErrDecode = fmt.Errorf("malformed frame")

	// ErrStorage wraps backing-store failures surfaced by the repository.
	ErrStorage = fmt.Errorf("storage failure")
)
