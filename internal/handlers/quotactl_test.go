package handlers

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

// These sizes must match the kernel's linux/quota.h layout exactly:
// the structs are written directly into the container process's memory
// by address, with no framing of their own.
func TestQuotaStructSizesMatchKernelABI(t *testing.T) {
	assert.EqualValues(t, 72, unsafe.Sizeof(ifDqblk{}))
	assert.EqualValues(t, 72, unsafe.Sizeof(ifNextDqblk{}))
	assert.EqualValues(t, 24, unsafe.Sizeof(ifDqinfo{}))
}

func TestQuotaSubcmdDecoding(t *testing.T) {
	// Q_GETQUOTA's subcommand value sets bit 31 once shifted into cmd
	// position, so the round trip must use unsigned shifts/masks, not
	// signed ones (a signed arithmetic shift would sign-extend and
	// recover the wrong subcommand).
	cmd := int32(uint32(qGetQuota<<subcmdShift) | usrQuota)
	assert.Equal(t, qGetQuota, int(uint32(cmd)>>subcmdShift))
	assert.Equal(t, usrQuota, int(uint32(cmd)&subcmdMask))
}

// A container-supplied id is namespace-relative and must be translated
// ns->host before it's used to key a host quota record; a host-returned
// id (Q_GETNEXTQUOTA's dqb_id) must be translated the other way, host->ns,
// before it's reported back to the container.
func TestQuotaIdTranslationDirection(t *testing.T) {
	m, err := procfs.ParseIdMap(strings.NewReader("0 100000 65536\n"))
	require.NoError(t, err)

	host, ok := m.MapInto(0)
	require.True(t, ok)
	assert.EqualValues(t, 100000, host)

	ns, ok := m.MapFrom(100123)
	require.True(t, ok)
	assert.EqualValues(t, 123, ns)
}
