package seccompwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufWithArgs(args ...uint64) *ProxyMessageBuffer {
	b := &ProxyMessageBuffer{}
	for i, a := range args {
		b.Notif.Data.Args[i] = a
	}
	return b
}

func TestArgBoundsChecked(t *testing.T) {
	b := bufWithArgs(1, 2, 3)
	v, err := b.Arg(2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	_, err = b.Arg(6)
	assert.Error(t, err)
	_, err = b.Arg(-1)
	assert.Error(t, err)
}

func TestArgInt32SignExtension(t *testing.T) {
	// a raw arg whose low 32 bits look negative as int32
	b := bufWithArgs(0xfffffffe)
	v, err := b.ArgInt32(0)
	require.NoError(t, err)
	assert.EqualValues(t, -2, v)
}

func TestArgUint32RangeCheck(t *testing.T) {
	b := bufWithArgs(0x100000000) // one past uint32 max
	_, err := b.ArgUint32(0)
	assert.Error(t, err)

	b2 := bufWithArgs(42)
	v, err := b2.ArgUint32(0)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestArgModeTAndArgDevT(t *testing.T) {
	b := bufWithArgs(0755, 0)
	mode, err := b.ArgModeT(0)
	require.NoError(t, err)
	assert.EqualValues(t, 0755, mode)

	b2 := bufWithArgs(0, 1<<40)
	dev, err := b2.ArgDevT(1)
	require.NoError(t, err)
	assert.EqualValues(t, 1<<40, dev)
}
