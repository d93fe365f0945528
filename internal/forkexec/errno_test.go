package forkexec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestErrnoOfExtractsWrappedErrno(t *testing.T) {
	err := Errno(unix.EPERM)
	errno, ok := errnoOf(err)
	assert.True(t, ok)
	assert.Equal(t, unix.EPERM, errno)
	assert.Equal(t, unix.EPERM.Error(), err.Error())
}

func TestErrnoOfRejectsOtherErrors(t *testing.T) {
	_, ok := errnoOf(errors.New("not an errno"))
	assert.False(t, ok)
}
