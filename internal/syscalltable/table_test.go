package syscalltable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupKnownEntries(t *testing.T) {
	assert.Equal(t, Mknod, Lookup(AuditArchX86_64, 133))
	assert.Equal(t, MknodAt, Lookup(AuditArchX86_64, 259))
	assert.Equal(t, Quotactl, Lookup(AuditArchX86_64, 179))

	assert.Equal(t, Mknod, Lookup(AuditArchI386, 14))
	assert.Equal(t, MknodAt, Lookup(AuditArchI386, 297))
	assert.Equal(t, Quotactl, Lookup(AuditArchI386, 131))
}

func TestLookupUnknownReturnsUnknown(t *testing.T) {
	assert.Equal(t, Unknown, Lookup(AuditArchX86_64, 0))
	assert.Equal(t, Unknown, Lookup(0xdeadbeef, 133))
}

func TestLookupNegativeOneSentinelNeverMatches(t *testing.T) {
	assert.Equal(t, Unknown, Lookup(AuditArchX86_64, -1))
}

func TestSyscallString(t *testing.T) {
	assert.Equal(t, "mknod", Mknod.String())
	assert.Equal(t, "mknodat", MknodAt.String())
	assert.Equal(t, "quotactl", Quotactl.String())
	assert.Equal(t, "unknown", Unknown.String())
}
