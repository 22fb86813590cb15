package core

import "github.com/pkg/errors"

// FieldError names the request field an event or inbox call got wrong.
type FieldError struct {
	Field string
	Error string
}

// ValidationError rejects a request before it reaches the notification service.
// The API answers 400 with one entry per field, or with Err alone when Fields is empty.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals that the process can no longer serve, e.g. the database is gone.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err, however wrapped, should stop the server.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
