package seccompwire

import (
	"fmt"
	"math"

	"golang.org/x/sys/unix"

	"github.com/proxmox/pve-lxc-syscalld/internal/procfs"
)

// MaxCookie is the largest cookie payload this daemon accepts.
const MaxCookie = 64

// fixedRecvSize is the portion of a request message preceding the
// cookie: one envelope, one SeccompNotif, one SeccompNotifResp.
func fixedRecvSize(sizes SeccompNotifSizes) int {
	return SizeProxyMsg + int(sizes.Notif) + int(sizes.NotifResp)
}

// ProtocolError is a fatal framing/validation failure: the caller must
// shut the connection down rather than reply to it.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string { return e.msg }

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// ProxyMessageBuffer owns the storage for exactly one in-flight request:
// the envelope, the notification and its response, the cookie, and (for
// the duration of the request) the caller's pidfd and mem-fd.
type ProxyMessageBuffer struct {
	sizes SeccompNotifSizes

	Envelope ProxyMsg
	Notif    SeccompNotif
	Resp     SeccompNotifResp

	cookie []byte

	pidFd *procfs.PidFd
	memFd int
}

// NewProxyMessageBuffer constructs an empty buffer validated against the
// daemon's cached kernel sizes.
func NewProxyMessageBuffer(sizes SeccompNotifSizes) *ProxyMessageBuffer {
	return &ProxyMessageBuffer{sizes: sizes, memFd: -1}
}

// PidFd returns the caller's pidfd extracted by the most recent Recv.
func (b *ProxyMessageBuffer) PidFd() *procfs.PidFd {
	return b.pidFd
}

// MemFd returns the caller's /proc/<pid>/mem fd extracted by the most
// recent Recv. The caller must not close it directly.
func (b *ProxyMessageBuffer) MemFd() int {
	return b.memFd
}

func (b *ProxyMessageBuffer) reset() {
	b.cookie = nil
	if b.pidFd != nil {
		b.pidFd.Close()
		b.pidFd = nil
	}
	if b.memFd != -1 {
		unix.Close(b.memFd)
		b.memFd = -1
	}
}

// Recv reads one request message from socket. It returns false (with a
// nil error) on a clean peer close. Any other returned error is fatal:
// the caller must shut the connection down.
func (b *ProxyMessageBuffer) Recv(socket int) (bool, error) {
	b.reset()

	fixed := fixedRecvSize(b.sizes)
	buf := make([]byte, fixed+MaxCookie)
	oob := make([]byte, unix.CmsgSpace(2*4))

	n, oobn, _, _, err := unix.Recvmsg(socket, buf, oob, unix.MSG_CMSG_CLOEXEC)
	if err != nil {
		return false, fmt.Errorf("recvmsg: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if n < fixed {
		return false, protocolErrorf("message too short: %d bytes, need at least %d", n, fixed)
	}

	var envelope ProxyMsg
	envelope.unmarshal(buf[0:SizeProxyMsg])
	if envelope.Reserved0 != 0 {
		return false, protocolErrorf("envelope.reserved0 != 0")
	}
	if envelope.Sizes != b.sizes {
		return false, protocolErrorf("envelope sizes %+v != cached sizes %+v", envelope.Sizes, b.sizes)
	}

	cookieCap := n - fixed
	if cookieCap > MaxCookie {
		return false, protocolErrorf("cookie too large: %d bytes, max %d", cookieCap, MaxCookie)
	}
	if envelope.CookieLen > math.MaxInt32 {
		return false, protocolErrorf("cookie_len does not fit: %d", envelope.CookieLen)
	}
	if n != fixed+int(envelope.CookieLen) {
		return false, protocolErrorf("message size %d != fixed %d + cookie_len %d", n, fixed, envelope.CookieLen)
	}

	var notif SeccompNotif
	notif.unmarshal(buf[SizeProxyMsg : SizeProxyMsg+SizeSeccompNotif])

	rights, err := parseSCMRights(oob[:oobn])
	if err != nil {
		return false, protocolErrorf("parsing control message: %v", err)
	}
	if len(rights) != 2 {
		return false, protocolErrorf("expected exactly 2 ancillary fds, got %d", len(rights))
	}

	pidFd, err := procfs.FromRaw(rights[0])
	if err != nil {
		unix.Close(rights[1])
		return false, protocolErrorf("adopting pidfd: %v", err)
	}

	b.Envelope = envelope
	b.Notif = notif
	b.cookie = append([]byte(nil), buf[fixed:n]...)
	b.pidFd = pidFd
	b.memFd = rights[1]

	b.Resp = SeccompNotifResp{
		Id:    notif.Id,
		Val:   -1,
		Error: -int32(unix.ENOSYS),
		Flags: 0,
	}

	return true, nil
}

func parseSCMRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var fds []int
	for _, cmsg := range cmsgs {
		if cmsg.Header.Level != unix.SOL_SOCKET || cmsg.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		rights, err := unix.ParseUnixRights(&cmsg)
		if err != nil {
			return nil, err
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

// Respond writes the current envelope/notif/resp back to socket, with no
// cookie and no ancillary data. A short write is fatal.
func (b *ProxyMessageBuffer) Respond(socket int) error {
	fixed := SizeProxyMsg + int(b.sizes.Notif) + int(b.sizes.NotifResp)
	buf := make([]byte, fixed)
	b.Envelope.marshal(buf[0:SizeProxyMsg])
	b.Notif.marshal(buf[SizeProxyMsg : SizeProxyMsg+SizeSeccompNotif])
	b.Resp.marshal(buf[SizeProxyMsg+SizeSeccompNotif : SizeProxyMsg+SizeSeccompNotif+SizeSeccompNotifResp])

	n, err := unix.Write(socket, buf)
	if err != nil {
		return fmt.Errorf("sendmsg: %w", err)
	}
	if n != len(buf) {
		return protocolErrorf("truncated message: wrote %d of %d bytes", n, len(buf))
	}
	return nil
}

// Close releases the fds held by the most recently received message.
func (b *ProxyMessageBuffer) Close() {
	b.reset()
}
