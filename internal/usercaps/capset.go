package usercaps

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

// capVersion3 is the capability_version_3 magic from linux/capability.h.
// The kernel has advanced this magic before; a hardened implementation
// would query capget with version 0 and re-issue with whatever the
// kernel reports. TODO: query capget(version=0) and adapt instead of
// hard-coding this magic.
const capVersion3 = 0x20080522

type capHeader struct {
	version uint32
	pid     int32
}

type capData struct {
	effective, permitted, inheritable uint32
}

// Capset issues the raw capset(2) syscall for the calling task (pid=0,
// i.e. self) using the capability_version_3 header and two 32-bit data
// entries (low/high halves of each 64-bit set), exactly as
// github.com/syndtr/gocapability's Apply does internally for this same
// kernel ABI. The bounding set is not touched.
func Capset(caps procfs.Capabilities) error {
	hdr := capHeader{version: capVersion3, pid: 0}
	data := [2]capData{
		{
			effective:   uint32(caps.Effective),
			permitted:   uint32(caps.Permitted),
			inheritable: uint32(caps.Inheritable),
		},
		{
			effective:   uint32(caps.Effective >> 32),
			permitted:   uint32(caps.Permitted >> 32),
			inheritable: uint32(caps.Inheritable >> 32),
		},
	}
	_, _, errno := unix.Syscall(
		unix.SYS_CAPSET,
		uintptr(unsafe.Pointer(&hdr)),
		uintptr(unsafe.Pointer(&data[0])),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
