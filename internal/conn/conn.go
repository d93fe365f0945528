// Package conn runs the per-connection request/response loop: one
// goroutine per accepted socket, reusing a single message buffer across
// iterations and servicing requests strictly in order.
package conn

import (
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/handlers"
	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
)

// Handle services socket until the peer disconnects or a fatal
// framing/protocol error occurs. It never panics out: a panic inside a
// handler is recovered and surfaces as a failed request, matching the
// fork-side catch-unwind boundary C4 applies to the same class of bug.
func Handle(socket int, sizes seccompwire.SeccompNotifSizes) {
	defer unix.Close(socket)

	buf := seccompwire.NewProxyMessageBuffer(sizes)
	defer buf.Close()

	for {
		ok, err := buf.Recv(socket)
		if err != nil {
			logrus.Warnf("seccomp connection: fatal receive error: %v", err)
			shutdown(socket)
			return
		}
		if !ok {
			return
		}

		if err := dispatchSafely(buf); err != nil {
			logrus.Warnf("seccomp connection: fatal dispatch error: %v", err)
			shutdown(socket)
			return
		}

		if err := buf.Respond(socket); err != nil {
			logrus.Warnf("seccomp connection: fatal respond error: %v", err)
			shutdown(socket)
			return
		}
	}
}

func dispatchSafely(buf *seccompwire.ProxyMessageBuffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("seccomp connection: handler panic: %v", r)
			buf.Resp.Val = -1
			buf.Resp.Error = -int32(unix.EFAULT)
			err = nil
		}
	}()
	return handlers.Dispatch(buf)
}

func shutdown(socket int) {
	if err := unix.Shutdown(socket, unix.SHUT_RDWR); err != nil && !errors.Is(err, unix.ENOTCONN) {
		logrus.Debugf("seccomp connection: shutdown: %v", err)
	}
}
