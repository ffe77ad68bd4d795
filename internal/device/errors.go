package device

import (
	"errors"
	"strings"
)

// Domain errors for the device package. Check with errors.Is.
var (
	// ErrDeviceNotFound is returned when no device has the given id.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDuplicateDeviceID is returned when a device label is already taken.
	ErrDuplicateDeviceID = errors.New("device: device ID already exists")

	// ErrAlreadyIssued is returned when issuing a device that is checked out.
	ErrAlreadyIssued = errors.New("device: already issued")

	// ErrInvalidDevice matches every *ValidationError.
	ErrInvalidDevice = errors.New("device: invalid")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// Add records a failure for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when it holds failures and nil otherwise.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "device: invalid: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrInvalidDevice) match validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDevice
}
