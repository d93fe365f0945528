// Package fdutil wraps raw file descriptors in owning types so that
// close-on-drop and O_CLOEXEC discipline are enforced at a single choke
// point rather than at every call site.
package fdutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Fd is an owning wrapper around a raw file descriptor. The zero value is
// not valid; use New or one of the Open* constructors.
type Fd struct {
	fd int
}

// New wraps an already-open, non-negative file descriptor.
func New(raw int) (Fd, error) {
	if raw < 0 {
		return Fd{}, fmt.Errorf("fdutil: invalid fd %d", raw)
	}
	return Fd{fd: raw}, nil
}

// Valid reports whether the descriptor has not yet been closed.
func (f Fd) Valid() bool {
	return f.fd >= 0
}

// FD returns the underlying descriptor for use in syscalls. The caller
// must not close it directly.
func (f Fd) FD() int {
	return f.fd
}

// IntoRaw releases ownership and returns the raw descriptor without
// closing it.
func (f *Fd) IntoRaw() int {
	raw := f.fd
	f.fd = -1
	return raw
}

// Close closes the descriptor. Safe to call on an already-released Fd.
func (f *Fd) Close() error {
	if f.fd < 0 {
		return nil
	}
	err := unix.Close(f.fd)
	f.fd = -1
	return err
}

// SetNonblocking toggles O_NONBLOCK on the descriptor.
func (f Fd) SetNonblocking(nonblocking bool) error {
	return unix.SetNonblock(f.fd, nonblocking)
}

// OpenDir opens path as an O_DIRECTORY|O_CLOEXEC descriptor, the shape
// used for pidfd-style directory handles on /proc/<pid>.
func OpenDir(path string) (Fd, error) {
	raw, err := unix.Open(path, unix.O_DIRECTORY|unix.O_CLOEXEC|unix.O_PATH, 0)
	if err != nil {
		return Fd{}, fmt.Errorf("open %s: %w", path, err)
	}
	return Fd{fd: raw}, nil
}

// Openat opens path relative to dirfd with O_CLOEXEC unconditionally set.
func Openat(dirfd int, path string, flags int, mode uint32) (Fd, error) {
	raw, err := unix.Openat(dirfd, path, flags|unix.O_CLOEXEC, mode)
	if err != nil {
		return Fd{}, err
	}
	return Fd{fd: raw}, nil
}
