package handlers

import (
	"encoding/json"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/forkexec"
	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
	"github.com/proxmox/pve-lxc-syscalld/internal/seccompwire"
	"github.com/proxmox/pve-lxc-syscalld/internal/usercaps"
)

const opQuotactl = "quotactl"

func init() {
	forkexec.RegisterOperation(opQuotactl, runQuotactl)
}

// Quota subcommands, from linux/quota.h. QCMD packs these into the
// syscall's cmd argument as (subcmd << 8) | type; subcmd is recovered
// by the inverse shift.
const (
	subcmdShift = 8
	subcmdMask  = 0xff

	qSync         = 0x800001
	qQuotaOn      = 0x800002
	qQuotaOff     = 0x800003
	qGetFmt       = 0x800004
	qGetInfo      = 0x800005
	qSetInfo      = 0x800006
	qGetQuota     = 0x800007
	qSetQuota     = 0x800008
	qGetNextQuota = 0x800009
)

const (
	usrQuota = 0
	grpQuota = 1
)

// outputKind names which struct, if any, a quotactl subcommand reads
// back out of the kernel and writes into the caller's memory.
type outputKind int

const (
	outputNone outputKind = iota
	outputDqblk
	outputNextDqblk
	outputDqinfo
	outputFmt
)

// ifDqblk mirrors linux/quota.h's struct if_dqblk (72 bytes): the
// payload of Q_GETQUOTA/Q_SETQUOTA.
type ifDqblk struct {
	BHardlimit uint64
	BSoftlimit uint64
	CurSpace   uint64
	IHardlimit uint64
	ISoftlimit uint64
	CurInodes  uint64
	BTime      uint64
	ITime      uint64
	Valid      uint32
}

// ifNextDqblk mirrors struct if_nextdqblk (72 bytes): the payload of
// Q_GETNEXTQUOTA, which additionally reports which id the returned
// limits belong to.
type ifNextDqblk struct {
	BHardlimit uint64
	BSoftlimit uint64
	CurSpace   uint64
	IHardlimit uint64
	ISoftlimit uint64
	CurInodes  uint64
	BTime      uint64
	ITime      uint64
	Valid      uint32
	Id         uint32
}

// ifDqinfo mirrors struct if_dqinfo (24 bytes): the payload of
// Q_GETINFO/Q_SETINFO.
type ifDqinfo struct {
	BGrace uint64
	IGrace uint64
	Flags  uint32
	Valid  uint32
}

func handleQuotactl(buf *seccompwire.ProxyMessageBuffer) error {
	cmdArg, err := buf.ArgInt32(0)
	if err != nil {
		return replyArgError(buf, err)
	}
	cmd := cmdArg
	// cmdArg's high subcommand bits (e.g. Q_GETQUOTA's 0x800007) set bit
	// 31, so the shift/mask to recover subcmd/type must be unsigned: a
	// signed arithmetic shift would sign-extend and misrecover it.
	subcmd := int(uint32(cmdArg) >> subcmdShift)
	kind := int(uint32(cmdArg) & subcmdMask)

	special, hasSpecial, err := buf.ArgOptCString(1)
	if err != nil {
		return replyArgError(buf, err)
	}
	id, err := buf.ArgInt32(2)
	if err != nil {
		return replyArgError(buf, err)
	}

	payload := quotactlPayload{
		Cmd:        cmd,
		Special:    special,
		HasSpecial: hasSpecial,
		Id:         id,
		IdKind:     kind & 0x3,
	}

	switch subcmd {
	case qQuotaOn, qQuotaOff:
		// pass through unchanged

	case qSync:
		if !hasSpecial {
			respondErrno(buf, unix.EINVAL)
			return nil
		}

	case qGetFmt:
		addr, err := buf.Arg(3)
		if err != nil {
			return err
		}
		payload.Output = outputFmt
		payload.Addr = addr

	case qGetInfo:
		addr, err := buf.Arg(3)
		if err != nil {
			return err
		}
		payload.Output = outputDqinfo
		payload.Addr = addr

	case qSetInfo:
		if !hasSpecial {
			respondErrno(buf, unix.EINVAL)
			return nil
		}
		in, err := seccompwire.ArgStructByPtr[ifDqinfo](buf, 3)
		if err != nil {
			return replyArgError(buf, err)
		}
		payload.In, _ = json.Marshal(in)

	case qGetQuota:
		addr, err := buf.Arg(3)
		if err != nil {
			return err
		}
		payload.Output = outputDqblk
		payload.Addr = addr
		payload.TranslateId = true

	case qSetQuota:
		in, err := seccompwire.ArgStructByPtr[ifDqblk](buf, 3)
		if err != nil {
			return replyArgError(buf, err)
		}
		payload.In, _ = json.Marshal(in)
		payload.TranslateId = true

	case qGetNextQuota:
		addr, err := buf.Arg(3)
		if err != nil {
			return err
		}
		payload.Output = outputNextDqblk
		payload.Addr = addr
		payload.TranslateId = true

	default:
		respondErrno(buf, unix.EOPNOTSUPP)
		return nil
	}

	caps, err := usercaps.Capture(buf.PidFd())
	if err != nil {
		return err
	}
	caps.DisableCgroupChange()

	_, err = forkexec.Run(buf.PidFd(), buf.MemFd(), nil, caps, opQuotactl, payload)
	if err != nil {
		return replySyscallErr(buf, err)
	}
	respondOk(buf, 0)
	return nil
}

// quotactlPayload is everything the helper needs to perform the
// syscall and, for "out" subcommands, write its result back into the
// caller's memory at Addr. TranslateId marks the subcommands whose id
// argument (and, for Q_GETNEXTQUOTA, whose returned id) crosses the
// container's uid/gid namespace boundary.
type quotactlPayload struct {
	Cmd         int32           `json:"cmd"`
	Special     string          `json:"special,omitempty"`
	HasSpecial  bool            `json:"has_special"`
	Id          int32           `json:"id"`
	IdKind      int             `json:"id_kind"`
	TranslateId bool            `json:"translate_id"`
	In          json.RawMessage `json:"in,omitempty"`
	Output      outputKind      `json:"output"`
	Addr        uint64          `json:"addr"`
}

func idMapFor(pid *procfs.PidFd, kind int) (procfs.IdMap, error) {
	if kind == grpQuota {
		return pid.GidMap()
	}
	return pid.UidMap()
}

func runQuotactl(raw json.RawMessage, target *procfs.PidFd, memFd int) (int64, error) {
	var p quotactlPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, forkexec.Errno(unix.EFAULT)
	}

	id := p.Id
	if p.TranslateId {
		m, err := idMapFor(target, p.IdKind)
		if err != nil {
			return 0, forkexec.Errno(unix.ERANGE)
		}
		host, ok := m.MapInto(uint32(id))
		if !ok {
			return 0, forkexec.Errno(unix.ERANGE)
		}
		id = int32(host)
	}

	var specialPtr unsafe.Pointer
	if p.HasSpecial {
		b, err := unix.BytePtrFromString(p.Special)
		if err != nil {
			return 0, forkexec.Errno(unix.EINVAL)
		}
		specialPtr = unsafe.Pointer(b)
	}

	switch p.Output {
	case outputDqblk:
		var out ifDqblk
		if err := doQuotactl(p.Cmd, specialPtr, id, unsafe.Pointer(&out)); err != nil {
			return 0, err
		}
		return 0, seccompwire.MemWriteStructRaw(memFd, int64(p.Addr), unsafe.Pointer(&out), int(unsafe.Sizeof(out)))

	case outputNextDqblk:
		var out ifNextDqblk
		if err := doQuotactl(p.Cmd, specialPtr, id, unsafe.Pointer(&out)); err != nil {
			return 0, err
		}
		m, err := idMapFor(target, p.IdKind)
		if err != nil {
			return 0, forkexec.Errno(unix.ERANGE)
		}
		ns, ok := m.MapFrom(out.Id)
		if !ok {
			return 0, forkexec.Errno(unix.ERANGE)
		}
		out.Id = ns
		return 0, seccompwire.MemWriteStructRaw(memFd, int64(p.Addr), unsafe.Pointer(&out), int(unsafe.Sizeof(out)))

	case outputDqinfo:
		var out ifDqinfo
		if err := doQuotactl(p.Cmd, specialPtr, id, unsafe.Pointer(&out)); err != nil {
			return 0, err
		}
		return 0, seccompwire.MemWriteStructRaw(memFd, int64(p.Addr), unsafe.Pointer(&out), int(unsafe.Sizeof(out)))

	case outputFmt:
		var out uint32
		if err := doQuotactl(p.Cmd, specialPtr, id, unsafe.Pointer(&out)); err != nil {
			return 0, err
		}
		return 0, seccompwire.MemWriteStructRaw(memFd, int64(p.Addr), unsafe.Pointer(&out), int(unsafe.Sizeof(out)))

	default:
		var dataPtr unsafe.Pointer
		if len(p.In) > 0 {
			switch {
			case int(uint32(p.Cmd)>>subcmdShift) == qSetQuota:
				var in ifDqblk
				json.Unmarshal(p.In, &in)
				dataPtr = unsafe.Pointer(&in)
				return 0, doQuotactl(p.Cmd, specialPtr, id, dataPtr)
			case int(uint32(p.Cmd)>>subcmdShift) == qSetInfo:
				var in ifDqinfo
				json.Unmarshal(p.In, &in)
				dataPtr = unsafe.Pointer(&in)
				return 0, doQuotactl(p.Cmd, specialPtr, id, dataPtr)
			}
		}
		return 0, doQuotactl(p.Cmd, specialPtr, id, nil)
	}
}

func doQuotactl(cmd int32, special unsafe.Pointer, id int32, addr unsafe.Pointer) error {
	_, _, errno := unix.Syscall6(unix.SYS_QUOTACTL, uintptr(cmd), uintptr(special), uintptr(id), uintptr(addr), 0, 0)
	if errno != 0 {
		return forkexec.Errno(errno)
	}
	return nil
}
