package daemon

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// seqpacketListener wraps a raw AF_UNIX/SOCK_SEQPACKET socket. Go's
// standard net package has no dial/listen support for SOCK_SEQPACKET,
// so this is the one place a raw-syscall style extends up to the
// accept loop.
type seqpacketListener struct {
	fd int
}

const listenBacklog = 16

// listenSeqpacket removes any pre-existing file at path (absence is not
// an error), then binds and listens on a new SOCK_SEQPACKET socket
// there.
func listenSeqpacket(path string) (*seqpacketListener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing existing socket %s: %w", path, err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	return &seqpacketListener{fd: fd}, nil
}

// Accept blocks for the next incoming connection and returns its
// connected socket fd.
func (l *seqpacketListener) Accept() (int, error) {
	nfd, _, err := unix.Accept4(l.fd, unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, err
	}
	return nfd, nil
}

func (l *seqpacketListener) Close() error {
	return unix.Close(l.fd)
}
