package forkexec

import (
	"encoding/json"

	"github.com/proxmox/pve-lxc-syscalld/internal/usercaps"
)

// helperArg is the sentinel argument that tells a re-exec'd copy of this
// binary to run as a fork-and-return helper rather than the daemon
// itself. It is matched in main's CLI dispatch and in this package's
// init, before any other package-level init can spin up goroutines.
const helperArg = "__syscalld_helper"

// ExtraFiles indices, relative to the child's fd 3 (fd 0-2 are the
// usual stdio descriptors, untouched). These are the fixed slots this
// package always passes to the re-exec'd helper, in order.
const (
	fdRequest = iota // read end: one JSON-encoded Request
	fdResult         // write end: one 16-byte Result record
	fdTarget         // the target process's /proc/<pid> directory fd
	fdMem            // the target's /proc/<pid>/mem fd
	numFixedFiles
)

// ExtraFdNum returns the fd number a handler's i'th extra descriptor
// (one passed to Run's extraFds) will have inside the helper process.
// Handlers needing a descriptor beyond target/mem (e.g. an already
// -resolved dirfd) compute this up front and embed it in their op
// payload, since the helper has no other way to learn the mapping.
func ExtraFdNum(i int) int {
	return baseExtraFd + numFixedFiles + i
}

// Request is the plain-data description of one syscall to perform,
// written by the parent to the helper's request pipe. The helper
// reconstructs a usercaps.UserCaps from Snapshot plus its inherited
// target pidfd, applies it, then dispatches to the registered operation
// named by Op. The AppArmor transition target (if any) is always the
// helper's own post-re-exec identity, never a descriptor inherited from
// the parent, so Request carries no "own pid" of its own.
type Request struct {
	TargetPid int `json:"target_pid"`

	Snapshot            usercaps.Snapshot `json:"snapshot"`
	DisableUidChange    bool              `json:"disable_uid_change"`
	DisableCgroupChange bool              `json:"disable_cgroup_change"`

	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

// resultRecordSize is the fixed 16-byte record written back over the
// result pipe: {val int64, errno int32, failure int32}.
const resultRecordSize = 8 + 4 + 4

// result is the decoded form of the 16-byte record.
type result struct {
	Val     int64
	Errno   int32
	Failure int32
}

func (r result) marshal() []byte {
	b := make([]byte, resultRecordSize)
	putInt64(b[0:8], r.Val)
	putInt32(b[8:12], r.Errno)
	putInt32(b[12:16], r.Failure)
	return b
}

func unmarshalResult(b []byte) result {
	return result{
		Val:     getInt64(b[0:8]),
		Errno:   getInt32(b[8:12]),
		Failure: getInt32(b[12:16]),
	}
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int64(u)
}

func putInt32(b []byte, v int32) {
	u := uint32(v)
	for i := 0; i < 4; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getInt32(b []byte) int32 {
	var u uint32
	for i := 0; i < 4; i++ {
		u |= uint32(b[i]) << (8 * i)
	}
	return int32(u)
}
