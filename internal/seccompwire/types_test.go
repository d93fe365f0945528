package seccompwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeccompDataRoundTrip(t *testing.T) {
	d := SeccompData{
		Nr:                 -1,
		Arch:               0xc000003e,
		InstructionPointer: 0x7fffdeadbeef,
		Args:               [6]uint64{1, 2, 3, 4, 5, 6},
	}
	b := make([]byte, SizeSeccompData)
	d.marshal(b)

	var got SeccompData
	got.unmarshal(b)
	assert.Equal(t, d, got)
}

func TestSeccompNotifRoundTrip(t *testing.T) {
	n := SeccompNotif{
		Id:    123456789,
		Pid:   4242,
		Flags: 0,
		Data: SeccompData{
			Nr:   133,
			Arch: 0xc000003e,
		},
	}
	b := make([]byte, SizeSeccompNotif)
	n.marshal(b)

	var got SeccompNotif
	got.unmarshal(b)
	assert.Equal(t, n, got)
}

func TestSeccompNotifRespRoundTrip(t *testing.T) {
	r := SeccompNotifResp{Id: 9, Val: -1, Error: -13, Flags: 0}
	b := make([]byte, SizeSeccompNotifResp)
	r.marshal(b)

	var got SeccompNotifResp
	got.unmarshal(b)
	assert.Equal(t, r, got)
}

func TestProxyMsgRoundTripAndSize(t *testing.T) {
	assert.EqualValues(t, 32, SizeProxyMsg)

	m := ProxyMsg{
		Reserved0:  0,
		MonitorPid: 100,
		InitPid:    101,
		Sizes:      SeccompNotifSizes{Notif: 80, NotifResp: 24, Data: 64},
		CookieLen:  16,
	}
	b := make([]byte, SizeProxyMsg)
	m.marshal(b)

	var got ProxyMsg
	got.unmarshal(b)
	assert.Equal(t, m, got)
}

func TestProxyMsgPaddingBytesAreZero(t *testing.T) {
	m := ProxyMsg{CookieLen: 0xdeadbeefdeadbeef}
	b := make([]byte, SizeProxyMsg)
	// poison the padding bytes to make sure marshal actually zeroes them
	b[22], b[23] = 0xff, 0xff
	m.marshal(b)
	assert.EqualValues(t, 0, b[22])
	assert.EqualValues(t, 0, b[23])
}
