package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConfigLocked     = errors.New("configuration locked")
	ErrReplay           = errors.New("replay blocked")
	ErrExternalCall     = errors.New("external call failed")
)

// Error is the diagnostic carried by a rejected transaction. Kind is one of
// the sentinel errors above so callers can match with errors.Is.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}

	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Invalid(format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Denied(format string, args ...interface{}) error {
	return &Error{Kind: ErrPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

func Locked(format string, args ...interface{}) error {
	return &Error{Kind: ErrConfigLocked, Message: fmt.Sprintf(format, args...)}
}

func Replay(format string, args ...interface{}) error {
	return &Error{Kind: ErrReplay, Message: fmt.Sprintf(format, args...)}
}

// External wraps the failure of an invoked component.
func External(cause error, format string, args ...interface{}) error {
	return &Error{Kind: ErrExternalCall, Message: fmt.Sprintf(format, args...), Cause: cause}
}
