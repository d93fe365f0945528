package fdutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestNsTypeCloneFlags(t *testing.T) {
	assert.EqualValues(t, unix.CLONE_NEWNS, MountNs{}.CloneFlag())
	assert.EqualValues(t, unix.CLONE_NEWUSER, UserNs{}.CloneFlag())
	assert.EqualValues(t, unix.CLONE_NEWCGROUP, CgroupNs{}.CloneFlag())
}
