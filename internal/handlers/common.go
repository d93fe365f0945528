package handlers

import (
	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
)

func toErrno(err error) unix.Errno {
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}

// replyArgError turns a non-fatal argument-decoding failure into an
// errno response and reports it handled (nil error). Any other error is
// returned unchanged, for the connection task to treat as fatal.
func replyArgError(buf *seccompwire.ProxyMessageBuffer, err error) error {
	if argErr, ok := err.(*seccompwire.ArgError); ok {
		respondErrno(buf, argErr.Errno)
		return nil
	}
	return err
}

// replySyscallErr turns the result of forkexec.Run into an errno
// response when it names one, and otherwise surfaces the error for the
// connection task's fatal-error handling.
func replySyscallErr(buf *seccompwire.ProxyMessageBuffer, err error) error {
	if errno, ok := err.(unix.Errno); ok {
		respondErrno(buf, errno)
		return nil
	}
	return err
}
