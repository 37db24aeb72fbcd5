package registry

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownUser        = errors.New("unknown user")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// UnknownUserError names the claimed author that has no registered key.
type UnknownUserError struct {
	User string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("unknown user %q", e.User)
}

func (e *UnknownUserError) Is(target error) bool {
	return target == ErrUnknownUser
}

// IsValidationError reports whether err was produced by the gate rather than
// by the backing store.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrMalformedSignature) ||
		errors.Is(err, ErrInvalidSignature)
}
