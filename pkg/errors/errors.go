// Package errors contains the error helpers shared by the launchpi packages.
// Errors are wrapped with a short description of the operation that failed so
// that the final message reads like a trace, e.g.
// "synchronize: build archive: hash /project/bin/Main.class: open: ...".
package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message. If arguments are supplied, the
// message is treated as a format string.
func New(format string, args ...interface{}) error {
	if len(args) == 0 {
		return goErrors.New(format)
	}
	return fmt.Errorf(format, args...)
}

type contextError struct {
	context string
	err     error
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// WithContext annotates `err` with a description of what was being done when
// it occurred. A nil error stays nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, err: err}
}

// RootCause strips the context added by WithContext and returns the original
// error.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// FriendlyError is an error whose message is meant to be shown to the user
// as-is, without any of the wrapped context.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError from the format string and args.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{msg: fmt.Sprintf(format, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message that should be printed to the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

type friendly interface {
	FriendlyMessage() string
}

// GetFriendlyMessage returns the user facing message of `err`, if the root
// cause of the error has one.
func GetFriendlyMessage(err error) (string, bool) {
	if f, ok := RootCause(err).(friendly); ok {
		return f.FriendlyMessage(), true
	}
	return "", false
}

// Is and As are re-exported so that callers don't need to import both this
// package and the standard library's.
var (
	Is = goErrors.Is
	As = goErrors.As
)
