package seccompwire

import (
	"bytes"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/fdutil"
)

// ArgError is a non-fatal argument-decoding failure: the caller replies
// to the request with this errno rather than shutting the connection
// down.
type ArgError struct {
	Errno unix.Errno
}

func (e *ArgError) Error() string { return e.Errno.Error() }

func argErrorf(errno unix.Errno) error {
	return &ArgError{Errno: errno}
}

// Arg returns the i'th syscall argument (0..5), bounds-checked.
func (b *ProxyMessageBuffer) Arg(i int) (uint64, error) {
	if i < 0 || i >= len(b.Notif.Data.Args) {
		return 0, fmt.Errorf("seccompwire: argument index %d out of range", i)
	}
	return b.Notif.Data.Args[i], nil
}

const maxCStringRead = 4096

// ArgOptCString reads a NUL-terminated string from the caller's address
// space at the offset named by argument i, via the mem-fd. A zero
// argument value is treated as an absent (nil) pointer. Up to
// maxCStringRead bytes are read; if no NUL terminator is found within
// that window, EINVAL is reported.
func (b *ProxyMessageBuffer) ArgOptCString(i int) (string, bool, error) {
	off, err := b.Arg(i)
	if err != nil {
		return "", false, err
	}
	if off == 0 {
		return "", false, nil
	}
	buf := make([]byte, maxCStringRead)
	n, err := unix.Pread(b.memFd, buf, int64(off))
	if err != nil {
		return "", false, argErrorf(toErrno(err))
	}
	idx := bytes.IndexByte(buf[:n], 0)
	if idx < 0 {
		return "", false, argErrorf(unix.EINVAL)
	}
	return string(buf[:idx]), true, nil
}

// ArgCString is ArgOptCString for an argument that must not be a null
// pointer; a zero argument value is reported as EFAULT.
func (b *ProxyMessageBuffer) ArgCString(i int) (string, error) {
	s, ok, err := b.ArgOptCString(i)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", argErrorf(unix.EFAULT)
	}
	return s, nil
}

// ArgStructByPtr reads exactly sizeof(T) bytes from the caller's address
// space at the offset named by argument i via the mem-fd, and
// reinterprets them as T. T must be a fixed-size, pointer-free struct
// whose field layout matches the kernel ABI it represents.
func ArgStructByPtr[T any](b *ProxyMessageBuffer, i int) (T, error) {
	var zero T
	off, err := b.Arg(i)
	if err != nil {
		return zero, err
	}
	return readStructAt[T](b.memFd, int64(off))
}

func readStructAt[T any](fd int, off int64) (T, error) {
	var v T
	size := int(unsafe.Sizeof(v))
	buf := make([]byte, size)
	n, err := unix.Pread(fd, buf, off)
	if err != nil {
		return v, argErrorf(toErrno(err))
	}
	if n != size {
		return v, argErrorf(unix.EINVAL)
	}
	v = *(*T)(unsafe.Pointer(&buf[0]))
	return v, nil
}

// MemWriteStruct writes v back into the caller's address space at the
// given offset via the mem-fd. A short write is reported as EINVAL.
func MemWriteStruct[T any](b *ProxyMessageBuffer, off int64, v *T) error {
	size := int(unsafe.Sizeof(*v))
	return MemWriteStructRaw(b.memFd, off, unsafe.Pointer(v), size)
}

// MemWriteStructRaw is MemWriteStruct for callers (e.g. a re-exec'd
// helper) that only have a raw mem-fd, not a ProxyMessageBuffer.
func MemWriteStructRaw(memFd int, off int64, ptr unsafe.Pointer, size int) error {
	buf := unsafe.Slice((*byte)(ptr), size)
	n, err := unix.Pwrite(memFd, buf, off)
	if err != nil {
		return argErrorf(toErrno(err))
	}
	if n != size {
		return argErrorf(unix.EINVAL)
	}
	return nil
}

// ArgFd resolves argument i as a file descriptor relative to the
// caller's process: AT_FDCWD maps to the caller's current working
// directory, any other value n opens /proc/<pid>/fd/<n> with flags.
func (b *ProxyMessageBuffer) ArgFd(i int, flags int) (fdutil.Fd, error) {
	raw, err := b.Arg(i)
	if err != nil {
		return fdutil.Fd{}, err
	}
	n := int32(raw)
	if n == unix.AT_FDCWD {
		f, err := b.pidFd.FdCwd()
		if err != nil {
			return fdutil.Fd{}, argErrorf(toErrno(err))
		}
		return f, nil
	}
	f, err := b.pidFd.FdNum(n, flags)
	if err != nil {
		return fdutil.Fd{}, argErrorf(toErrno(err))
	}
	return f, nil
}

// ArgInt32 returns argument i as a signed 32-bit integer (the kernel
// calling convention sign-extends 32-bit syscall arguments to 64 bits).
func (b *ProxyMessageBuffer) ArgInt32(i int) (int32, error) {
	raw, err := b.Arg(i)
	if err != nil {
		return 0, err
	}
	return int32(raw), nil
}

// ArgUint32 range-checks argument i as an unsigned 32-bit integer.
func (b *ProxyMessageBuffer) ArgUint32(i int) (uint32, error) {
	raw, err := b.Arg(i)
	if err != nil {
		return 0, err
	}
	if raw > math.MaxUint32 {
		return 0, argErrorf(unix.EINVAL)
	}
	return uint32(raw), nil
}

// ArgModeT range-checks argument i as a mode_t.
func (b *ProxyMessageBuffer) ArgModeT(i int) (uint32, error) {
	return b.ArgUint32(i)
}

// ArgDevT returns argument i as a dev_t (64-bit on this platform; no
// range check is necessary).
func (b *ProxyMessageBuffer) ArgDevT(i int) (uint64, error) {
	return b.Arg(i)
}

func toErrno(err error) unix.Errno {
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}
