// Package handlers implements the small, closed set of syscalls this
// daemon services on a container's behalf: mknod/mknodat against a
// fixed accept-list, and the quotactl family with host/namespace id
// translation.
package handlers

import (
	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
	"github.com/proxmox/pve-lxc-syscalld/internal/syscalltable"
)

// Dispatch runs the handler for the syscall buf's envelope names,
// writing its result directly into buf.Resp. An unrecognized syscall
// (including the explicit Unknown/-1 sentinel) is reported as ENOSYS
// without ever looking at the arguments.
func Dispatch(buf *seccompwire.ProxyMessageBuffer) error {
	sc := syscalltable.Lookup(buf.Notif.Data.Arch, buf.Notif.Data.Nr)
	switch sc {
	case syscalltable.Mknod:
		return handleMknod(buf)
	case syscalltable.MknodAt:
		return handleMknodAt(buf)
	case syscalltable.Quotactl:
		return handleQuotactl(buf)
	default:
		respondErrno(buf, unix.ENOSYS)
		return nil
	}
}

func respondErrno(buf *seccompwire.ProxyMessageBuffer, errno unix.Errno) {
	buf.Resp.Val = -1
	buf.Resp.Error = -int32(errno)
}

func respondOk(buf *seccompwire.ProxyMessageBuffer, val int64) {
	buf.Resp.Val = val
	buf.Resp.Error = 0
}
