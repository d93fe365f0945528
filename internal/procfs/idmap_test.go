package procfs_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

func TestParseIdMap(t *testing.T) {
	m, err := procfs.ParseIdMap(strings.NewReader("         0     100000      65536\n"))
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, procfs.IdMapEntry{NsStart: 0, HostStart: 100000, Range: 65536}, m[0])
}

func TestParseIdMapMalformed(t *testing.T) {
	_, err := procfs.ParseIdMap(strings.NewReader("0 100000\n"))
	assert.Error(t, err)
}

func TestIdMapMapFromAndInto(t *testing.T) {
	m, err := procfs.ParseIdMap(strings.NewReader("0 100000 65536\n"))
	require.NoError(t, err)

	ns, ok := m.MapFrom(100000)
	require.True(t, ok)
	assert.EqualValues(t, 0, ns)

	host, ok := m.MapInto(0)
	require.True(t, ok)
	assert.EqualValues(t, 100000, host)

	_, ok = m.MapFrom(99999)
	assert.False(t, ok)

	_, ok = m.MapInto(65536)
	assert.False(t, ok)
}

func TestIdMapMultipleRanges(t *testing.T) {
	fixture := "0 100000 1000\n1000 200000 1000\n"
	m, err := procfs.ParseIdMap(strings.NewReader(fixture))
	require.NoError(t, err)

	host, ok := m.MapInto(1500)
	require.True(t, ok)
	assert.EqualValues(t, 200500, host)
}
