// Package forkexec reproduces the capture/fork/apply/perform/exit
// pattern a privileged syscall proxy needs, in a runtime where a bare
// fork() is unsafe: a self re-exec of the running binary, handed its
// share of work over inherited pipes and file descriptors rather than
// over shared memory from a cloned address space.
package forkexec

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
	"github.com/proxmox/pve-lxc-syscalld/internal/usercaps"
)

// Run launches a helper copy of the running binary, hands it caps (the
// already-captured permission snapshot of the calling container
// process), the target pidfd, and the mem-fd of the calling process's
// address space, then asks it to perform the operation registered under
// op with the given payload. It blocks until the helper has exited and
// returns the syscall's result value, or an error describing either a
// protocol/spawn failure or the translated errno. Any AppArmor
// transition Apply performs inside the helper targets the helper's own
// post-re-exec identity, which Run has no part in establishing.
func Run(target *procfs.PidFd, memFd int, extraFds []int, caps *usercaps.UserCaps, op string, payload interface{}) (int64, error) {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("forkexec: encoding payload: %w", err)
	}

	req := Request{
		TargetPid:           target.Pid(),
		Snapshot:            caps.Snapshot,
		DisableUidChange:    caps.UidChangeDisabled(),
		DisableCgroupChange: caps.CgroupChangeDisabled(),
		Op:                  op,
		Payload:             rawPayload,
	}

	reqRead, reqWrite, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("forkexec: creating request pipe: %w", err)
	}
	defer reqRead.Close()
	defer reqWrite.Close()

	resRead, resWrite, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("forkexec: creating result pipe: %w", err)
	}
	defer resRead.Close()
	defer resWrite.Close()

	targetFile := os.NewFile(uintptr(target.DirFd()), "target-pidfd")
	memFile := os.NewFile(uintptr(memFd), "mem")

	files := []*os.File{
		reqRead,
		resWrite,
		targetFile,
		memFile,
	}
	for _, fd := range extraFds {
		files = append(files, os.NewFile(uintptr(fd), "extra"))
	}

	cmd := &exec.Cmd{
		Path:       "/proc/self/exe",
		Args:       []string{os.Args[0], helperArg},
		ExtraFiles: files,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("forkexec: starting helper: %w", err)
	}

	// These ends are now owned by the child; the parent's copies must
	// close so the child's read of reqRead/write of resWrite see EOF at
	// the right time rather than blocking on the parent's own handle.
	reqRead.Close()
	resWrite.Close()

	enc := json.NewEncoder(reqWrite)
	encErr := enc.Encode(&req)
	reqWrite.Close()
	if encErr != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return 0, fmt.Errorf("forkexec: writing request: %w", encErr)
	}

	recordBuf := make([]byte, resultRecordSize)
	n, readErr := readFull(resRead, recordBuf)

	waitErr := cmd.Wait()

	if readErr != nil || n != resultRecordSize {
		if waitErr != nil {
			return 0, fmt.Errorf("forkexec: helper exited without a result: %w", waitErr)
		}
		return 0, fmt.Errorf("forkexec: short result read (%d bytes): %v", n, readErr)
	}

	res := unmarshalResult(recordBuf)
	if res.Failure != 0 {
		return 0, fmt.Errorf("forkexec: helper reported internal failure")
	}
	if res.Errno != 0 {
		return 0, unix.Errno(res.Errno)
	}
	return res.Val, nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("forkexec: unexpected EOF")
		}
	}
	return total, nil
}
