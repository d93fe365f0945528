package forkexec

import "golang.org/x/sys/unix"

// ErrnoError lets an OperationFunc report a specific errno for the
// kernel to hand back to the caller, as opposed to the EFAULT a helper
// crash or an unrecognized error is mapped to.
type ErrnoError struct {
	Errno unix.Errno
}

func (e *ErrnoError) Error() string { return e.Errno.Error() }

// Errno constructs an ErrnoError, for handlers translating a rejected
// request into a specific syscall failure.
func Errno(errno unix.Errno) error {
	return &ErrnoError{Errno: errno}
}

func errnoOf(err error) (unix.Errno, bool) {
	if e, ok := err.(*ErrnoError); ok {
		return e.Errno, true
	}
	if errno, ok := err.(unix.Errno); ok {
		return errno, true
	}
	return 0, false
}
