package fdutil

import "golang.org/x/sys/unix"

// NsType tags an NsFd with the CLONE_NEW* flag required to enter it via
// setns(2). Each concrete NsType is a zero-sized marker type so the
// compiler, not a runtime check, enforces which clone flag a given NsFd
// uses.
type NsType interface {
	CloneFlag() int
}

// MountNs tags a mount-namespace file descriptor.
type MountNs struct{}

func (MountNs) CloneFlag() int { return unix.CLONE_NEWNS }

// UserNs tags a user-namespace file descriptor.
type UserNs struct{}

func (UserNs) CloneFlag() int { return unix.CLONE_NEWUSER }

// CgroupNs tags a cgroup-namespace file descriptor.
type CgroupNs struct{}

func (CgroupNs) CloneFlag() int { return unix.CLONE_NEWCGROUP }

// NsFd is a namespace file descriptor parameterized over the namespace
// kind it refers to. The only permitted operation is Setns, and it
// always uses the clone flag dictated by T.
type NsFd[T NsType] struct {
	fd Fd
}

// NewNsFd wraps raw as an NsFd of the given kind.
func NewNsFd[T NsType](raw Fd) NsFd[T] {
	return NsFd[T]{fd: raw}
}

// Setns enters the namespace referred to by n.
func (n NsFd[T]) Setns() error {
	var tag T
	return unix.Setns(n.fd.FD(), tag.CloneFlag())
}

// Close releases the underlying descriptor.
func (n *NsFd[T]) Close() error {
	return n.fd.Close()
}
