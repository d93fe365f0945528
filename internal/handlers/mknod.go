package handlers

import (
	"encoding/json"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/fdutil"
	"github.com/proxmox/pve-lxc-syscalld/internal/forkexec"
	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
	"github.com/proxmox/pve-lxc-syscalld/internal/usercaps"
)

const opMknodat = "mknodat"

func init() {
	forkexec.RegisterOperation(opMknodat, runMknodat)
}

// devEntry names one (type, major, minor) triple this daemon will let a
// container create via mknod/mknodat.
type devEntry struct {
	sflag uint32
	major uint32
	minor uint32
}

var mknodAcceptList = []devEntry{
	{unix.S_IFREG, 0, 0},
	{unix.S_IFCHR, 0, 0}, // whiteout
	{unix.S_IFCHR, 5, 0}, // tty
	{unix.S_IFCHR, 5, 1}, // console
	{unix.S_IFCHR, 5, 2}, // ptmx
	{unix.S_IFCHR, 1, 3}, // null
	{unix.S_IFCHR, 1, 5}, // zero
	{unix.S_IFCHR, 1, 7}, // full
	{unix.S_IFCHR, 1, 8}, // random
	{unix.S_IFCHR, 1, 9}, // urandom
}

func checkMknodDev(mode uint32, dev uint64) bool {
	sflag := mode & unix.S_IFMT
	major := unix.Major(dev)
	minor := unix.Minor(dev)
	for _, e := range mknodAcceptList {
		if e.sflag == sflag && e.major == major && e.minor == minor {
			return true
		}
	}
	return false
}

func handleMknod(buf *seccompwire.ProxyMessageBuffer) error {
	mode, err := buf.ArgModeT(1)
	if err != nil {
		return replyArgError(buf, err)
	}
	dev, err := buf.ArgDevT(2)
	if err != nil {
		return replyArgError(buf, err)
	}
	if !checkMknodDev(mode, dev) {
		respondErrno(buf, unix.EPERM)
		return nil
	}

	pathname, err := buf.ArgCString(0)
	if err != nil {
		return replyArgError(buf, err)
	}

	return doMknodat(buf, nil, pathname, mode, dev)
}

func handleMknodAt(buf *seccompwire.ProxyMessageBuffer) error {
	mode, err := buf.ArgModeT(2)
	if err != nil {
		return replyArgError(buf, err)
	}
	dev, err := buf.ArgDevT(3)
	if err != nil {
		return replyArgError(buf, err)
	}
	if !checkMknodDev(mode, dev) {
		respondErrno(buf, unix.EPERM)
		return nil
	}

	dirFd, err := buf.ArgFd(0, unix.O_DIRECTORY)
	if err != nil {
		return replyArgError(buf, err)
	}
	defer dirFd.Close()
	pathname, err := buf.ArgCString(1)
	if err != nil {
		return replyArgError(buf, err)
	}

	return doMknodat(buf, &dirFd, pathname, mode, dev)
}

// mknodatPayload is what the parent hands the helper. When dirFd is
// absent the syscall resolves against the caller's cwd (already entered
// by UserCaps.Apply by the time runMknodat executes); otherwise DirFd
// names the extra descriptor (see forkexec.ExtraFdNum) the parent
// already resolved via /proc/<pid>/fd.
type mknodatPayload struct {
	HasDirFd bool   `json:"has_dirfd"`
	DirFd    int    `json:"dirfd"`
	Pathname string `json:"pathname"`
	Mode     uint32 `json:"mode"`
	Dev      uint64 `json:"dev"`
}

func doMknodat(buf *seccompwire.ProxyMessageBuffer, dirFd *fdutil.Fd, pathname string, mode uint32, dev uint64) error {
	caps, err := usercaps.Capture(buf.PidFd())
	if err != nil {
		return err
	}

	var extraFds []int
	payload := mknodatPayload{Pathname: pathname, Mode: mode, Dev: dev}
	if dirFd != nil {
		payload.HasDirFd = true
		payload.DirFd = forkexec.ExtraFdNum(0)
		extraFds = []int{dirFd.FD()}
	}

	val, err := forkexec.Run(buf.PidFd(), buf.MemFd(), extraFds, caps, opMknodat, payload)
	if err != nil {
		return replySyscallErr(buf, err)
	}
	respondOk(buf, val)
	return nil
}

func runMknodat(raw json.RawMessage, target *procfs.PidFd, memFd int) (int64, error) {
	var p mknodatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, forkexec.Errno(unix.EFAULT)
	}

	dirFd := unix.AT_FDCWD
	if p.HasDirFd {
		dirFd = p.DirFd
	}

	if err := unix.Mknodat(dirFd, p.Pathname, p.Mode, int(p.Dev)); err != nil {
		return 0, forkexec.Errno(toErrno(err))
	}
	return 0, nil
}
