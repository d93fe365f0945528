package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
)

func TestToErrno(t *testing.T) {
	assert.Equal(t, unix.EPERM, toErrno(unix.EPERM))
	assert.Equal(t, unix.EIO, toErrno(errors.New("not an errno")))
}

func TestReplyArgErrorHandlesArgError(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	err := replyArgError(buf, &seccompwire.ArgError{Errno: unix.EINVAL})
	assert.NoError(t, err)
	assert.EqualValues(t, -int32(unix.EINVAL), buf.Resp.Error)
}

func TestReplyArgErrorPassesThroughOtherErrors(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	want := errors.New("fatal framing error")
	got := replyArgError(buf, want)
	assert.Equal(t, want, got)
}

func TestReplySyscallErrHandlesErrno(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	err := replySyscallErr(buf, unix.ENOSPC)
	assert.NoError(t, err)
	assert.EqualValues(t, -int32(unix.ENOSPC), buf.Resp.Error)
}

func TestReplySyscallErrPassesThroughOtherErrors(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	want := errors.New("helper spawn failed")
	got := replySyscallErr(buf, want)
	assert.Equal(t, want, got)
}
