package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
	"github.com/proxmox/pve-lxc-syscalld/internal/syscalltable"
)

func TestRespondErrnoNegatesValue(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	respondErrno(buf, unix.EPERM)
	assert.EqualValues(t, -1, buf.Resp.Val)
	assert.EqualValues(t, -int32(unix.EPERM), buf.Resp.Error)
}

func TestRespondOkClearsError(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	buf.Resp.Error = -int32(unix.ENOSYS)
	respondOk(buf, 7)
	assert.EqualValues(t, 7, buf.Resp.Val)
	assert.EqualValues(t, 0, buf.Resp.Error)
}

func TestDispatchUnknownSyscallRespondsEnosys(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	buf.Notif.Data.Arch = syscalltable.AuditArchX86_64
	buf.Notif.Data.Nr = -1 // the explicit "no syscall" sentinel

	err := Dispatch(buf)
	assert.NoError(t, err)
	assert.EqualValues(t, -1, buf.Resp.Val)
	assert.EqualValues(t, -int32(unix.ENOSYS), buf.Resp.Error)
}

func TestDispatchUnrecognizedNrRespondsEnosys(t *testing.T) {
	buf := &seccompwire.ProxyMessageBuffer{}
	buf.Notif.Data.Arch = syscalltable.AuditArchX86_64
	buf.Notif.Data.Nr = 9999

	err := Dispatch(buf)
	assert.NoError(t, err)
	assert.EqualValues(t, -int32(unix.ENOSYS), buf.Resp.Error)
}
