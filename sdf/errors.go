package sdf

import (
	"errors"
	"fmt"
)

// Error classes returned by the library. Callers match them with errors.Is.
var (
	ErrNotPDF           = errors.New("not a PDF file")
	ErrPasswordRequired = errors.New("document is encrypted: password required")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrCorrupt          = errors.New("corrupt document structure")
	ErrUnsupported      = errors.New("unsupported feature")
	ErrLocked           = errors.New("document is locked")
	ErrPermission       = errors.New("operation not permitted by document security")
	ErrNotFound         = errors.New("object not found")
)

// Error annotates a failure with the operation and object involved.
type Error struct {
	Op  string
	Ref Ref
	Err error
}

func (e *Error) Error() string {
	if e.Ref.Num > 0 {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error wrapping kind with a formatted detail message.
func Errorf(op string, kind error, format string, args ...interface{}) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}
