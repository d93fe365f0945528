package procfs_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

func TestParseCGroupsV1Only(t *testing.T) {
	fixture := "5:cpu,cpuacct:/lxc/100\n" +
		"4:memory:/lxc/100\n"

	cg, err := procfs.ParseCGroups(strings.NewReader(fixture))
	require.NoError(t, err)

	assert.True(t, cg.HasV1())
	assert.Equal(t, "/lxc/100", cg.V1["cpu"])
	assert.Equal(t, "/lxc/100", cg.V1["cpuacct"])
	assert.Equal(t, "/lxc/100", cg.V1["memory"])
	assert.Empty(t, cg.V2)
}

func TestParseCGroupsUnifiedV2(t *testing.T) {
	cg, err := procfs.ParseCGroups(strings.NewReader("0::/lxc/100\n"))
	require.NoError(t, err)

	assert.False(t, cg.HasV1())
	assert.Equal(t, "/lxc/100", cg.V2)
}

func TestParseCGroupsHybrid(t *testing.T) {
	fixture := "8:memory:/lxc/100\n" +
		"0::/lxc/100\n"

	cg, err := procfs.ParseCGroups(strings.NewReader(fixture))
	require.NoError(t, err)

	assert.True(t, cg.HasV1())
	assert.Equal(t, "/lxc/100", cg.V2)
}

func TestParseCGroupsIgnoresMalformedLines(t *testing.T) {
	cg, err := procfs.ParseCGroups(strings.NewReader("not-a-valid-line\n"))
	require.NoError(t, err)
	assert.False(t, cg.HasV1())
	assert.Empty(t, cg.V2)
}
