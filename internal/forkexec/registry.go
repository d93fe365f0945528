package forkexec

import (
	"encoding/json"
	"fmt"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

// OperationFunc performs one syscall inside the forked/re-exec'd helper,
// after its UserCaps snapshot has already been applied. target is the
// calling container process's pidfd (e.g. for uid/gid-map lookups),
// memFd is its /proc/<pid>/mem fd, for any argument that is a pointer
// into the caller's address space. The returned value becomes the
// seccomp response's val on success; a non-nil error is translated to
// an errno by the caller of Run (via ErrnoError or a bare unix.Errno, if
// the operation wants a specific one; any other error becomes EFAULT).
type OperationFunc func(payload json.RawMessage, target *procfs.PidFd, memFd int) (int64, error)

var registry = map[string]OperationFunc{}

// RegisterOperation adds fn under name to the set of operations a
// helper process can be asked to perform. It is meant to be called from
// handler package init functions, before any daemon goroutine starts
// issuing requests; it panics on a duplicate name since that is always
// a programming error.
func RegisterOperation(name string, fn OperationFunc) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("forkexec: operation %q already registered", name))
	}
	registry[name] = fn
}

func lookupOperation(name string) (OperationFunc, bool) {
	fn, ok := registry[name]
	return fn, ok
}
