package procfs_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

const statusFixture = `Name:	bash
Umask:	0022
State:	S (sleeping)
Uid:	1000	1000	1000	1000
Gid:	1000	1000	1000	1000
CapInh:	0000000000000000
CapPrm:	0000000000000000
CapEff:	0000000000000000
CapBnd:	0000003fffffffff
Seccomp:	0
`

func TestParseStatus(t *testing.T) {
	st, err := procfs.ParseStatus(strings.NewReader(statusFixture))
	require.NoError(t, err)

	assert.Equal(t, uint32(0022), st.Umask)
	assert.Equal(t, procfs.Uids{Real: 1000, Effective: 1000, Saved: 1000, FS: 1000}, st.Uid)
	assert.Equal(t, procfs.Uids{Real: 1000, Effective: 1000, Saved: 1000, FS: 1000}, st.Gid)
	assert.Equal(t, uint64(0), st.Caps.Inheritable)
}

func TestParseStatusCapabilities(t *testing.T) {
	fixture := "CapInh:\t0000000000000001\n" +
		"CapPrm:\t0000000000000003\n" +
		"CapEff:\t0000000000000007\n"

	st, err := procfs.ParseStatus(strings.NewReader(fixture))
	require.NoError(t, err)

	assert.EqualValues(t, 1, st.Caps.Inheritable)
	assert.EqualValues(t, 3, st.Caps.Permitted)
	assert.EqualValues(t, 7, st.Caps.Effective)
}

func TestParseStatusMissingUmaskDefaultsZero(t *testing.T) {
	st, err := procfs.ParseStatus(strings.NewReader("Name:\tsh\n"))
	require.NoError(t, err)
	assert.Zero(t, st.Umask)
}

func TestParseStatusMalformedUid(t *testing.T) {
	_, err := procfs.ParseStatus(strings.NewReader("Uid:\t1000\t1000\n"))
	assert.Error(t, err)
}
