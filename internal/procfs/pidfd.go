package procfs

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/fdutil"
)

// PidFd is an owned directory file descriptor referring to /proc/<pid>,
// plus the numeric pid it was discovered to refer to. It supplies every
// /proc-relative operation a permission-snapshot capture or a namespace
// entry needs, and owns no other global state.
type PidFd struct {
	dir fdutil.Fd
	pid int
}

// Open opens /proc/<pid> as a directory file descriptor.
func Open(pid int) (*PidFd, error) {
	dir, err := fdutil.OpenDir(fmt.Sprintf("/proc/%d", pid))
	if err != nil {
		return nil, err
	}
	return &PidFd{dir: dir, pid: pid}, nil
}

// FromRaw adopts an already-open directory file descriptor on /proc/<pid>
// (typically received as SCM_RIGHTS ancillary data) and recovers the
// numeric pid by reading the Pid: field of its status file.
func FromRaw(raw int) (*PidFd, error) {
	fd, err := fdutil.New(raw)
	if err != nil {
		return nil, err
	}
	p := &PidFd{dir: fd}
	pid, err := p.readPid()
	if err != nil {
		p.dir.Close()
		return nil, err
	}
	p.pid = pid
	return p, nil
}

// Adopt wraps an already-open /proc/<pid> directory file descriptor
// whose pid is already known, skipping the status-file read FromRaw
// otherwise performs. Used when the pid was already discovered once by
// the process handing this descriptor off (e.g. a re-exec'd helper
// inheriting a descriptor its parent already adopted via FromRaw).
func Adopt(raw int, pid int) (*PidFd, error) {
	fd, err := fdutil.New(raw)
	if err != nil {
		return nil, err
	}
	return &PidFd{dir: fd, pid: pid}, nil
}

func (p *PidFd) readPid() (int, error) {
	f, err := p.openRelative("status", unix.O_RDONLY)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// FromRaw only needs the Pid: field, not the rest of ParseStatus's
	// schema, so read the raw bytes directly rather than via ParseStatus.
	raw, err := readAllAt(f.FD())
	if err != nil {
		return 0, err
	}
	return parsePidLine(raw)
}

func parsePidLine(data []byte) (int, error) {
	const prefix = "Pid:"
	s := string(data)
	for _, line := range splitLines(s) {
		if len(line) > len(prefix) && line[:len(prefix)] == prefix {
			var pid int
			_, err := fmt.Sscanf(line[len(prefix):], "%d", &pid)
			if err != nil {
				return 0, err
			}
			return pid, nil
		}
	}
	return 0, fmt.Errorf("procfs: no Pid: field in status")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func readAllAt(fd int) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return buf, nil
		}
	}
}

// Pid returns the numeric pid discovered for this handle.
func (p *PidFd) Pid() int {
	return p.pid
}

// DirFd returns the raw directory file descriptor. The caller must not
// close it; use Close on the PidFd itself.
func (p *PidFd) DirFd() int {
	return p.dir.FD()
}

// Close releases the directory file descriptor.
func (p *PidFd) Close() error {
	return p.dir.Close()
}

func (p *PidFd) openRelative(path string, flags int) (fdutil.Fd, error) {
	return fdutil.Openat(p.dir.FD(), path, flags, 0)
}

// Status reads and parses /proc/<pid>/status.
func (p *PidFd) Status() (ProcStatus, error) {
	f, err := p.openRelative("status", unix.O_RDONLY)
	if err != nil {
		return ProcStatus{}, err
	}
	defer f.Close()
	return ParseStatus(os.NewFile(uintptr(f.FD()), "status"))
}

// CGroup reads and parses /proc/<pid>/cgroup.
func (p *PidFd) CGroup() (CGroups, error) {
	f, err := p.openRelative("cgroup", unix.O_RDONLY)
	if err != nil {
		return CGroups{}, err
	}
	defer f.Close()
	return ParseCGroups(os.NewFile(uintptr(f.FD()), "cgroup"))
}

// UidMap reads and parses /proc/<pid>/uid_map.
func (p *PidFd) UidMap() (IdMap, error) {
	f, err := p.openRelative("uid_map", unix.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseIdMap(os.NewFile(uintptr(f.FD()), "uid_map"))
}

// GidMap reads and parses /proc/<pid>/gid_map.
func (p *PidFd) GidMap() (IdMap, error) {
	f, err := p.openRelative("gid_map", unix.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseIdMap(os.NewFile(uintptr(f.FD()), "gid_map"))
}

// AppArmorLabel reads /proc/<pid>/attr/current, truncated at the first
// space or newline. EINVAL (AppArmor not enabled for this task, or at
// all) is reported as ("", false, nil), matching the treatment of
// "no AppArmor" as a non-error condition.
func (p *PidFd) AppArmorLabel() (string, bool, error) {
	f, err := p.openRelative("attr/current", unix.O_RDONLY)
	if err != nil {
		if err == unix.EINVAL {
			return "", false, nil
		}
		return "", false, err
	}
	defer f.Close()

	raw, err := readAllAt(f.FD())
	if err != nil {
		if err == unix.EINVAL {
			return "", false, nil
		}
		return "", false, err
	}
	label := string(raw)
	if idx := indexAny(label, " \n"); idx >= 0 {
		label = label[:idx]
	}
	if label == "" {
		return "", false, nil
	}
	return label, true, nil
}

func indexAny(s, chars string) int {
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(chars); j++ {
			if s[i] == chars[j] {
				return i
			}
		}
	}
	return -1
}

// NsMount opens this task's mount namespace descriptor.
func (p *PidFd) NsMount() (fdutil.NsFd[fdutil.MountNs], error) {
	f, err := p.openRelative("ns/mnt", unix.O_RDONLY)
	if err != nil {
		return fdutil.NsFd[fdutil.MountNs]{}, err
	}
	return fdutil.NewNsFd[fdutil.MountNs](f), nil
}

// NsUser opens this task's user namespace descriptor.
func (p *PidFd) NsUser() (fdutil.NsFd[fdutil.UserNs], error) {
	f, err := p.openRelative("ns/user", unix.O_RDONLY)
	if err != nil {
		return fdutil.NsFd[fdutil.UserNs]{}, err
	}
	return fdutil.NewNsFd[fdutil.UserNs](f), nil
}

// NsCgroup opens this task's cgroup namespace descriptor.
func (p *PidFd) NsCgroup() (fdutil.NsFd[fdutil.CgroupNs], error) {
	f, err := p.openRelative("ns/cgroup", unix.O_RDONLY)
	if err != nil {
		return fdutil.NsFd[fdutil.CgroupNs]{}, err
	}
	return fdutil.NewNsFd[fdutil.CgroupNs](f), nil
}

// FdCwd opens a handle on the task's current working directory, suitable
// for fchdir.
func (p *PidFd) FdCwd() (fdutil.Fd, error) {
	return fdutil.Openat(p.dir.FD(), "cwd", unix.O_PATH|unix.O_DIRECTORY, 0)
}

// FdNum opens /proc/<pid>/fd/<n> with the given flags, used to resolve a
// dirfd argument received from the caller.
func (p *PidFd) FdNum(n int32, flags int) (fdutil.Fd, error) {
	return fdutil.Openat(p.dir.FD(), "fd/"+strconv.Itoa(int(n)), flags, 0)
}

// EnterChroot reproduces the caller's root directory: fchdir into
// /proc/<pid> itself, chroot via the "root" magic-symlink entry relative
// to that cwd, then chdir to the new root's "/". This must run in a
// forked/re-exec'd child; it is irreversible in-process.
func (p *PidFd) EnterChroot() error {
	if err := unix.Fchdir(p.dir.FD()); err != nil {
		return fmt.Errorf("fchdir(pidfd): %w", err)
	}
	if err := unix.Chroot("root"); err != nil {
		return fmt.Errorf("chroot(root): %w", err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("chdir(/): %w", err)
	}
	return nil
}

// EnterCwd reproduces the caller's current working directory by
// fchdir-ing into its cwd handle.
func (p *PidFd) EnterCwd() error {
	f, err := p.FdCwd()
	if err != nil {
		return err
	}
	defer f.Close()
	return unix.Fchdir(f.FD())
}
