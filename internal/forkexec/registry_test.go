package forkexec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

func noopOperation(json.RawMessage, *procfs.PidFd, int) (int64, error) {
	return 42, nil
}

func TestRegisterAndLookupOperation(t *testing.T) {
	RegisterOperation("test:noop", noopOperation)

	fn, ok := lookupOperation("test:noop")
	assert.True(t, ok)
	val, err := fn(nil, nil, -1)
	assert.NoError(t, err)
	assert.EqualValues(t, 42, val)

	_, ok = lookupOperation("test:does-not-exist")
	assert.False(t, ok)
}

func TestRegisterOperationPanicsOnDuplicate(t *testing.T) {
	RegisterOperation("test:dup", noopOperation)
	assert.Panics(t, func() {
		RegisterOperation("test:dup", noopOperation)
	})
}
