package plumbing

import "errors"

var (
	ErrInvalidHashLength = errors.New("plumbing: invalid hash length")
	ErrInvalidType        = errors.New("plumbing: invalid object type")
	ErrObjectNotFound     = errors.New("plumbing: object not found")
	ErrReferenceNotFound  = errors.New("plumbing: reference not found")
	ErrReferenceHasChanged = errors.New("plumbing: reference has changed since it was read")
)

// PermanentError wraps an error that will not be resolved by retrying.
type PermanentError struct {
	Err error
}

func NewPermanentError(err error) *PermanentError {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	return "permanent client error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}
