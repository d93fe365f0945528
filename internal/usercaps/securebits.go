package usercaps

import "golang.org/x/sys/unix"

// SecureBits mirrors the kernel's 9-bit securebits field (linux/securebits.h).
// golang.org/x/sys/unix does not expose these as named constants, so they
// are defined here with their fixed kernel values.
type SecureBits uint32

const (
	SecbitNoroot             SecureBits = 1 << 0
	SecbitNorootLocked       SecureBits = 1 << 1
	SecbitNoSetuidFixup      SecureBits = 1 << 2
	SecbitNoSetuidFixupLocked SecureBits = 1 << 3
	SecbitKeepCaps           SecureBits = 1 << 4
	SecbitKeepCapsLocked     SecureBits = 1 << 5
	SecbitNoCapAmbientRaise  SecureBits = 1 << 6
	SecbitNoCapAmbientRaiseLocked SecureBits = 1 << 7
)

// GetSecureBits reads the current task's securebits via
// prctl(PR_GET_SECUREBITS).
func GetSecureBits() (SecureBits, error) {
	v, err := unix.PrctlRetInt(unix.PR_GET_SECUREBITS, 0, 0, 0, 0)
	if err != nil {
		return 0, err
	}
	return SecureBits(v), nil
}

// SetSecureBits writes the current task's securebits via
// prctl(PR_SET_SECUREBITS).
func SetSecureBits(bits SecureBits) error {
	return unix.Prctl(unix.PR_SET_SECUREBITS, uintptr(bits), 0, 0, 0)
}
