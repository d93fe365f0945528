// Package usercaps captures a process's permission environment from its
// /proc entries and reproduces it in the current task, so that a
// privileged helper process performing a syscall on a container's behalf
// is subject to the exact kernel checks the container process itself
// would face.
package usercaps

import (
	"fmt"
	"os"
	"path"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

// Snapshot is the plain-data portion of a captured permission
// environment: everything UserCaps needs except the open file
// descriptors it was read from. It is safe to marshal (e.g. to hand to
// a re-exec'd helper process over a pipe).
type Snapshot struct {
	Uid   procfs.Uids         `json:"uid"`
	Gid   procfs.Uids         `json:"gid"`
	Caps  procfs.Capabilities `json:"caps"`
	Umask uint32              `json:"umask"`

	CGroups procfs.CGroups `json:"cgroups"`

	AppArmorLabel string `json:"apparmor_label,omitempty"`
	HasAppArmor   bool   `json:"has_apparmor"`
}

// UserCaps is the captured permission snapshot of one caller, ready to
// be reproduced via Apply in a forked/re-exec'd child. It must never be
// applied to the daemon's own long-lived process image.
type UserCaps struct {
	target *procfs.PidFd
	Snapshot

	disableUidChange    bool
	disableCgroupChange bool
}

// Capture reads the permission environment of the process referred to
// by pid: its uid/gid/capability sets and umask (/proc/<pid>/status),
// its cgroup membership (/proc/<pid>/cgroup), and its AppArmor label
// (/proc/<pid>/attr/current, if any).
func Capture(pid *procfs.PidFd) (*UserCaps, error) {
	st, err := pid.Status()
	if err != nil {
		return nil, fmt.Errorf("usercaps: reading status: %w", err)
	}
	cg, err := pid.CGroup()
	if err != nil {
		return nil, fmt.Errorf("usercaps: reading cgroup: %w", err)
	}
	label, has, err := pid.AppArmorLabel()
	if err != nil {
		return nil, fmt.Errorf("usercaps: reading AppArmor label: %w", err)
	}
	return &UserCaps{
		target: pid,
		Snapshot: Snapshot{
			Uid:           st.Uid,
			Gid:           st.Gid,
			Caps:          st.Caps,
			Umask:         st.Umask,
			CGroups:       cg,
			AppArmorLabel: label,
			HasAppArmor:   has,
		},
	}, nil
}

// FromSnapshot reconstructs a UserCaps in a re-exec'd helper process
// from a Snapshot captured (and transmitted) by the parent, plus the
// target's inherited pidfd. It must be applied before the syscall the
// helper was launched to perform, and the process must exit immediately
// after.
func FromSnapshot(target *procfs.PidFd, snap Snapshot) *UserCaps {
	return &UserCaps{target: target, Snapshot: snap}
}

// DisableUidChange skips the uid/gid/capability-switching portion of
// Apply, for syscalls whose policy does not need the caller's identity
// (e.g. operations already fully described by their arguments).
func (u *UserCaps) DisableUidChange() {
	u.disableUidChange = true
}

// DisableCgroupChange skips the cgroup-migration portion of Apply.
func (u *UserCaps) DisableCgroupChange() {
	u.disableCgroupChange = true
}

// UidChangeDisabled reports whether DisableUidChange has been called.
func (u *UserCaps) UidChangeDisabled() bool {
	return u.disableUidChange
}

// CgroupChangeDisabled reports whether DisableCgroupChange has been called.
func (u *UserCaps) CgroupChangeDisabled() bool {
	return u.disableCgroupChange
}

// Apply reproduces the captured snapshot in the current task, in the
// fixed order the kernel's own permission checks require: cgroups, mount
// namespace, chroot, cwd, AppArmor transition, then uid/gid/capability
// switch. It is only ever safe to call from a forked/re-exec'd child
// about to perform exactly one syscall and then exit; applied to a
// long-lived process it is irreversible and would corrupt every
// subsequent request.
//
// ownPid is the calling task's own /proc/<pid> handle, opened before
// Apply enters any chroot or mount namespace, used as the target of the
// AppArmor profile transition. AppArmor's attr/current write interface
// only ever permits a task to change its own profile, so this must name
// whatever process Apply is actually running in, never the container's
// target pidfd and never a different process's.
func (u *UserCaps) Apply(ownPid *procfs.PidFd) error {
	if !u.disableCgroupChange {
		if err := u.applyCgroups(); err != nil {
			return fmt.Errorf("usercaps: applying cgroups: %w", err)
		}
	}

	mnt, err := u.target.NsMount()
	if err != nil {
		return fmt.Errorf("usercaps: opening mount namespace: %w", err)
	}
	defer mnt.Close()
	if err := mnt.Setns(); err != nil {
		return fmt.Errorf("usercaps: entering mount namespace: %w", err)
	}

	if err := u.target.EnterChroot(); err != nil {
		return fmt.Errorf("usercaps: entering chroot: %w", err)
	}

	if err := u.target.EnterCwd(); err != nil {
		return fmt.Errorf("usercaps: entering cwd: %w", err)
	}

	if u.HasAppArmor {
		if err := applyAppArmor(ownPid, u.AppArmorLabel); err != nil {
			return fmt.Errorf("usercaps: applying AppArmor profile: %w", err)
		}
	}

	if !u.disableUidChange {
		if err := u.applyIdentity(); err != nil {
			return fmt.Errorf("usercaps: applying identity: %w", err)
		}
	}

	return nil
}

func (u *UserCaps) applyCgroups() error {
	if p, ok := u.CGroups.V1["devices"]; ok {
		if err := migrateCgroup("devices/", p); err != nil {
			return err
		}
	}
	if u.CGroups.V2 != "" {
		kind := ""
		if u.CGroups.HasV1() {
			kind = "unified/"
		}
		if err := migrateCgroup(kind, u.CGroups.V2); err != nil {
			return err
		}
	}
	return nil
}

func migrateCgroup(kind, cgroupPath string) error {
	procsFile := path.Join("/sys/fs/cgroup", kind, cgroupPath, "cgroup.procs")
	f, err := os.OpenFile(procsFile, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", procsFile, err)
	}
	defer f.Close()
	if _, err := f.WriteString("0"); err != nil {
		return fmt.Errorf("writing %s: %w", procsFile, err)
	}
	return nil
}

func applyAppArmor(ownPid *procfs.PidFd, label string) error {
	fd, err := unix.Openat(ownPid.DirFd(), "attr/current", unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("opening own attr/current: %w", err)
	}
	defer unix.Close(fd)

	msg := "changeprofile " + label
	if _, err := unix.Write(fd, []byte(msg)); err != nil {
		return fmt.Errorf("writing changeprofile: %w", err)
	}
	return nil
}

func (u *UserCaps) applyIdentity() error {
	unix.Umask(int(u.Umask))

	current, err := GetSecureBits()
	if err != nil {
		return fmt.Errorf("reading securebits: %w", err)
	}
	if err := SetSecureBits(current | SecbitKeepCaps | SecbitNoSetuidFixup); err != nil {
		return fmt.Errorf("setting securebits: %w", err)
	}

	if err := unix.Setregid(-1, int(u.Gid.Effective)); err != nil {
		return fmt.Errorf("setegid: %w", err)
	}
	if err := unix.Setfsgid(int(u.Gid.FS)); err != nil {
		return fmt.Errorf("setfsgid: %w", err)
	}
	if err := unix.Setreuid(-1, int(u.Uid.Effective)); err != nil {
		return fmt.Errorf("seteuid: %w", err)
	}
	if err := unix.Setfsuid(int(u.Uid.FS)); err != nil {
		return fmt.Errorf("setfsuid: %w", err)
	}

	if err := Capset(u.Caps); err != nil {
		return fmt.Errorf("capset: %w", err)
	}
	return nil
}
