package fd

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// SystemError reports a failed descriptor syscall: the OS error code plus a
// description of the action that failed. The message renders as
// "{description}: {os-error-text}".
type SystemError struct {
	Errno  unix.Errno
	action string
}

func newSysError(err error, format string, args ...any) *SystemError {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		errno = unix.EIO
	}
	return &SystemError{Errno: errno, action: fmt.Sprintf(format, args...)}
}

func (e *SystemError) Error() string {
	return e.action + ": " + e.Errno.Error()
}

// Code returns the numeric OS error code.
func (e *SystemError) Code() int {
	return int(e.Errno)
}

// Unwrap exposes the errno so errors.Is(err, unix.ENOENT) works.
func (e *SystemError) Unwrap() error {
	return e.Errno
}

// ErrorCode carries an OS error code out of operations that must not fail
// loudly. Zero means no error.
type ErrorCode int

// Get returns the raw code.
func (c ErrorCode) Get() int {
	return int(c)
}

// Err returns nil when the code is zero, otherwise the corresponding errno.
func (c ErrorCode) Err() error {
	if c == 0 {
		return nil
	}
	return unix.Errno(c)
}

func codeOf(err error) ErrorCode {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return ErrorCode(errno)
	}
	return ErrorCode(unix.EIO)
}
