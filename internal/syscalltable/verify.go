package syscalltable

import (
	"fmt"

	libseccomp "github.com/seccomp/libseccomp-golang"
)

// names lists, for every syscall this daemon services, the name
// libseccomp knows it by, so the hard-coded numbers in table can be
// checked against the running kernel's own native-arch syscall table at
// startup rather than trusted blindly.
var names = map[Syscall]string{
	Mknod:    "mknod",
	MknodAt:  "mknodat",
	Quotactl: "quotactl",
}

// VerifyNative resolves each serviced syscall's name via libseccomp for
// the host's native architecture and confirms it matches the number
// table carries for that (arch, name) pair. It returns an error
// describing the first mismatch found.
func VerifyNative() error {
	arch, err := libseccomp.GetNativeArch()
	if err != nil {
		return fmt.Errorf("syscalltable: resolving native arch: %w", err)
	}

	var auditArch uint32
	switch arch {
	case libseccomp.ArchAMD64:
		auditArch = AuditArchX86_64
	case libseccomp.ArchX86:
		auditArch = AuditArchI386
	default:
		// Not one of the two architectures this daemon carries a
		// table for; nothing to verify against.
		return nil
	}

	for sc, name := range names {
		id, err := libseccomp.GetSyscallFromNameByArch(name, arch)
		if err != nil {
			return fmt.Errorf("syscalltable: resolving %s for %s: %w", name, arch, err)
		}
		if Lookup(auditArch, int32(id)) != sc {
			return fmt.Errorf("syscalltable: %s resolved to nr %d, which table does not map to %s", name, id, sc)
		}
	}
	return nil
}
