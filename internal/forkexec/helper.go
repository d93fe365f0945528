package forkexec

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
	"github.com/proxmox/pve-lxc-syscalld/internal/usercaps"
)

// baseExtraFd is the first inherited fd number a re-exec'd helper sees;
// fd 0-2 remain the usual stdio descriptors.
const baseExtraFd = 3

func extraFd(index int) int {
	return baseExtraFd + index
}

func init() {
	if IsHelperArg(os.Args) {
		// A forked-and-reexec'd helper performs exactly one syscall and
		// exits; it must never let the Go runtime schedule it onto a
		// different OS thread mid-flight, since the identity and
		// namespace changes Apply makes are thread-local kernel state.
		runtime.LockOSThread()
		runtime.GOMAXPROCS(1)
	}
}

// IsHelperArg reports whether args designates a helper invocation, i.e.
// whether main should call HelperMain instead of starting the daemon.
func IsHelperArg(args []string) bool {
	return len(args) > 1 && args[1] == helperArg
}

// HelperMain is the entire body of a re-exec'd helper process: read one
// Request from its inherited request pipe, apply the permission
// snapshot it carries, dispatch to the named operation, and write back
// one 16-byte result record. It does not return; the process always
// exits from within this function.
func HelperMain() {
	res := runHelper()
	resultFile := os.NewFile(uintptr(extraFd(fdResult)), "result")
	if _, err := resultFile.Write(res.marshal()); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func runHelper() result {
	req, err := readRequest()
	if err != nil {
		return result{Failure: 1}
	}

	target, err := procfs.Adopt(extraFd(fdTarget), req.TargetPid)
	if err != nil {
		return result{Failure: 1}
	}

	// own must be opened here, in the helper's own post-re-exec
	// execution context: cmd.Start() made this a genuinely distinct
	// process from the parent daemon, and AppArmor's attr/current
	// write interface only ever allows a task to change its own
	// profile. An fd inherited from the parent would name the wrong
	// process.
	own, err := procfs.Open(os.Getpid())
	if err != nil {
		return result{Failure: 1}
	}

	uc := usercaps.FromSnapshot(target, req.Snapshot)
	if req.DisableUidChange {
		uc.DisableUidChange()
	}
	if req.DisableCgroupChange {
		uc.DisableCgroupChange()
	}
	if err := uc.Apply(own); err != nil {
		return result{Failure: 1}
	}

	fn, ok := lookupOperation(req.Op)
	if !ok {
		return result{Failure: 1}
	}

	return runOperation(fn, req.Payload, target)
}

// runOperation calls fn with a recover guard. The helper runs entirely
// post-fork with no connection task above it to catch a panic, so one
// escaping here would otherwise kill the process outright and surface
// to the parent as a fatal short read on the result pipe, instead of the
// EFAULT reply an unexpected fault in the target's memory or arguments
// should produce.
func runOperation(fn OperationFunc, payload json.RawMessage, target *procfs.PidFd) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{Errno: int32(unix.EFAULT)}
		}
	}()

	val, err := fn(payload, target, extraFd(fdMem))
	if err != nil {
		if errno, ok := errnoOf(err); ok {
			return result{Errno: int32(errno)}
		}
		return result{Errno: int32(unix.EFAULT)}
	}
	return result{Val: val}
}

func readRequest() (Request, error) {
	f := os.NewFile(uintptr(extraFd(fdRequest)), "request")
	dec := json.NewDecoder(f)
	var req Request
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("forkexec: decoding request: %w", err)
	}
	return req, nil
}
