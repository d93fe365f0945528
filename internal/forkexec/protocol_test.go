package forkexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultRoundTrip(t *testing.T) {
	cases := []result{
		{Val: 0, Errno: 0, Failure: 0},
		{Val: -1, Errno: 13, Failure: 0},
		{Val: 1 << 40, Errno: -1, Failure: 1},
	}
	for _, r := range cases {
		b := r.marshal()
		assert.Len(t, b, resultRecordSize)
		assert.Equal(t, r, unmarshalResult(b))
	}
}

func TestExtraFdNumIsSequentialAfterFixedSlots(t *testing.T) {
	base := ExtraFdNum(0)
	assert.Equal(t, baseExtraFd+numFixedFiles, base)
	assert.Equal(t, base+1, ExtraFdNum(1))
}

func TestIsHelperArg(t *testing.T) {
	assert.True(t, IsHelperArg([]string{"/path/to/bin", helperArg}))
	assert.False(t, IsHelperArg([]string{"/path/to/bin"}))
	assert.False(t, IsHelperArg([]string{"/path/to/bin", "--system"}))
}
