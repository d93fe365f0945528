package seccompwire

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// seccompGetNotifSizes is the SECCOMP_GET_NOTIF_SIZES operation id from
// linux/seccomp.h; golang.org/x/sys/unix does not expose the seccomp(2)
// syscall wrapper itself.
const seccompGetNotifSizes = 3

// kernelNotifSizes mirrors the kernel's struct seccomp_notif_sizes
// layout for the raw seccomp(2) call (three consecutive uint16s with no
// implied padding at this size).
type kernelNotifSizes struct {
	notif     uint16
	notifResp uint16
	data      uint16
}

// QueryKernelNotifSizes issues seccomp(SECCOMP_GET_NOTIF_SIZES, 0, &out)
// and returns the kernel-reported struct sizes.
func QueryKernelNotifSizes() (SeccompNotifSizes, error) {
	var out kernelNotifSizes
	_, _, errno := unix.Syscall(
		unix.SYS_SECCOMP,
		uintptr(seccompGetNotifSizes),
		0,
		uintptr(unsafe.Pointer(&out)),
	)
	if errno != 0 {
		return SeccompNotifSizes{}, fmt.Errorf("seccomp(SECCOMP_GET_NOTIF_SIZES): %w", errno)
	}
	return SeccompNotifSizes{Notif: out.notif, NotifResp: out.notifResp, Data: out.data}, nil
}

// CompiledSizes returns the sizes of this implementation's own
// SeccompNotif/SeccompNotifResp/SeccompData structs, for comparison
// against QueryKernelNotifSizes at startup.
func CompiledSizes() SeccompNotifSizes {
	return SeccompNotifSizes{
		Notif:     SizeSeccompNotif,
		NotifResp: SizeSeccompNotifResp,
		Data:      SizeSeccompData,
	}
}

// LoadNotifSizes queries the kernel and verifies its reported sizes
// match this implementation's compiled layout exactly, per the hard
// startup invariant: a mismatch means this binary's struct layouts do
// not match the running kernel's ABI, and continuing would silently
// corrupt every request.
func LoadNotifSizes() (SeccompNotifSizes, error) {
	kernel, err := QueryKernelNotifSizes()
	if err != nil {
		return SeccompNotifSizes{}, err
	}
	compiled := CompiledSizes()
	if kernel != compiled {
		return SeccompNotifSizes{}, fmt.Errorf(
			"seccomp notif sizes mismatch: kernel reports %+v, compiled layout is %+v",
			kernel, compiled,
		)
	}
	return kernel, nil
}
