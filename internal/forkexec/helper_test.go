package forkexec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

func TestRunOperationRecoversPanic(t *testing.T) {
	panics := func(json.RawMessage, *procfs.PidFd, int) (int64, error) {
		panic("operation blew up")
	}
	res := runOperation(panics, nil, nil)
	assert.Equal(t, result{Errno: int32(unix.EFAULT)}, res)
}

func TestRunOperationPassesThroughErrnoAndValue(t *testing.T) {
	ok := func(json.RawMessage, *procfs.PidFd, int) (int64, error) {
		return 7, nil
	}
	assert.Equal(t, result{Val: 7}, runOperation(ok, nil, nil))

	failing := func(json.RawMessage, *procfs.PidFd, int) (int64, error) {
		return 0, unix.ENOSPC
	}
	assert.Equal(t, result{Errno: int32(unix.ENOSPC)}, runOperation(failing, nil, nil))
}
