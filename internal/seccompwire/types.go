// Package seccompwire implements the fixed wire layout used by an LXC
// container monitor to forward seccomp user-notification requests to
// this daemon over a SOCK_SEQPACKET UNIX socket, and to carry its
// replies back.
//
// Every struct in this package mirrors a fixed kernel or LXC-proxy ABI
// layout byte-for-byte; fields are marshaled/unmarshaled explicitly
// field-by-field (native/little-endian, matching the x86_64/i386 targets
// this daemon runs on) rather than via reflection, so the wire layout is
// never at the mercy of Go's own struct-alignment rules.
package seccompwire

import "encoding/binary"

// SeccompData mirrors linux/seccomp.h's struct seccomp_data.
type SeccompData struct {
	Nr                 int32
	Arch               uint32
	InstructionPointer uint64
	Args               [6]uint64
}

// SizeSeccompData is the on-the-wire size of SeccompData: nr(4) +
// arch(4) + instruction_pointer(8) + 6*args(8) = 64.
const SizeSeccompData = 4 + 4 + 8 + 6*8

func (d *SeccompData) marshal(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(d.Nr))
	binary.LittleEndian.PutUint32(b[4:8], d.Arch)
	binary.LittleEndian.PutUint64(b[8:16], d.InstructionPointer)
	for i, a := range d.Args {
		off := 16 + i*8
		binary.LittleEndian.PutUint64(b[off:off+8], a)
	}
}

func (d *SeccompData) unmarshal(b []byte) {
	d.Nr = int32(binary.LittleEndian.Uint32(b[0:4]))
	d.Arch = binary.LittleEndian.Uint32(b[4:8])
	d.InstructionPointer = binary.LittleEndian.Uint64(b[8:16])
	for i := range d.Args {
		off := 16 + i*8
		d.Args[i] = binary.LittleEndian.Uint64(b[off : off+8])
	}
}

// SeccompNotif mirrors linux/seccomp.h's struct seccomp_notif.
type SeccompNotif struct {
	Id    uint64
	Pid   uint32
	Flags uint32
	Data  SeccompData
}

// SizeSeccompNotif is the on-the-wire size of SeccompNotif: id(8) +
// pid(4) + flags(4) + data(64) = 80.
const SizeSeccompNotif = 8 + 4 + 4 + SizeSeccompData

func (n *SeccompNotif) marshal(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], n.Id)
	binary.LittleEndian.PutUint32(b[8:12], n.Pid)
	binary.LittleEndian.PutUint32(b[12:16], n.Flags)
	n.Data.marshal(b[16 : 16+SizeSeccompData])
}

func (n *SeccompNotif) unmarshal(b []byte) {
	n.Id = binary.LittleEndian.Uint64(b[0:8])
	n.Pid = binary.LittleEndian.Uint32(b[8:12])
	n.Flags = binary.LittleEndian.Uint32(b[12:16])
	n.Data.unmarshal(b[16 : 16+SizeSeccompData])
}

// SeccompNotifResp mirrors linux/seccomp.h's struct seccomp_notif_resp.
type SeccompNotifResp struct {
	Id    uint64
	Val   int64
	Error int32
	Flags uint32
}

// SizeSeccompNotifResp is the on-the-wire size of SeccompNotifResp:
// id(8) + val(8) + error(4) + flags(4) = 24.
const SizeSeccompNotifResp = 8 + 8 + 4 + 4

func (r *SeccompNotifResp) marshal(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], r.Id)
	binary.LittleEndian.PutUint64(b[8:16], uint64(r.Val))
	binary.LittleEndian.PutUint32(b[16:20], uint32(r.Error))
	binary.LittleEndian.PutUint32(b[20:24], r.Flags)
}

func (r *SeccompNotifResp) unmarshal(b []byte) {
	r.Id = binary.LittleEndian.Uint64(b[0:8])
	r.Val = int64(binary.LittleEndian.Uint64(b[8:16]))
	r.Error = int32(binary.LittleEndian.Uint32(b[16:20]))
	r.Flags = binary.LittleEndian.Uint32(b[20:24])
}

// SeccompNotifSizes mirrors linux/seccomp.h's struct seccomp_notif_sizes,
// as returned by seccomp(SECCOMP_GET_NOTIF_SIZES).
type SeccompNotifSizes struct {
	Notif     uint16
	NotifResp uint16
	Data      uint16
}

// SizeSeccompNotifSizes is the on-the-wire size of the three uint16
// fields, with no padding (the envelope adds explicit padding around
// this field to realign the following uint64).
const SizeSeccompNotifSizes = 2 + 2 + 2

func (s *SeccompNotifSizes) marshal(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], s.Notif)
	binary.LittleEndian.PutUint16(b[2:4], s.NotifResp)
	binary.LittleEndian.PutUint16(b[4:6], s.Data)
}

func (s *SeccompNotifSizes) unmarshal(b []byte) {
	s.Notif = binary.LittleEndian.Uint16(b[0:2])
	s.NotifResp = binary.LittleEndian.Uint16(b[2:4])
	s.Data = binary.LittleEndian.Uint16(b[4:6])
}

// ProxyMsg is the LXC proxy envelope that precedes every SeccompNotif /
// SeccompNotifResp pair on the wire. Field order is fixed; Reserved0
// must be zero on receipt. Two bytes of explicit padding separate Sizes
// from CookieLen to keep the trailing uint64 8-byte aligned, matching
// the natural C layout of the equivalent repr(C) struct.
type ProxyMsg struct {
	Reserved0  uint64
	MonitorPid int32
	InitPid    int32
	Sizes      SeccompNotifSizes
	CookieLen  uint64
}

// SizeProxyMsg is the on-the-wire size of ProxyMsg: reserved0(8) +
// monitor_pid(4) + init_pid(4) + sizes(6) + pad(2) + cookie_len(8) = 32.
const SizeProxyMsg = 8 + 4 + 4 + SizeSeccompNotifSizes + 2 + 8

func (m *ProxyMsg) marshal(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], m.Reserved0)
	binary.LittleEndian.PutUint32(b[8:12], uint32(m.MonitorPid))
	binary.LittleEndian.PutUint32(b[12:16], uint32(m.InitPid))
	m.Sizes.marshal(b[16:22])
	b[22], b[23] = 0, 0
	binary.LittleEndian.PutUint64(b[24:32], m.CookieLen)
}

func (m *ProxyMsg) unmarshal(b []byte) {
	m.Reserved0 = binary.LittleEndian.Uint64(b[0:8])
	m.MonitorPid = int32(binary.LittleEndian.Uint32(b[8:12]))
	m.InitPid = int32(binary.LittleEndian.Uint32(b[12:16]))
	m.Sizes.unmarshal(b[16:22])
	m.CookieLen = binary.LittleEndian.Uint64(b[24:32])
}
