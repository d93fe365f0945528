package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestCheckMknodDevAcceptsListedEntries(t *testing.T) {
	cases := []struct {
		name  string
		mode  uint32
		major uint32
		minor uint32
	}{
		{"regular file", unix.S_IFREG, 0, 0},
		{"whiteout", unix.S_IFCHR, 0, 0},
		{"tty", unix.S_IFCHR, 5, 0},
		{"console", unix.S_IFCHR, 5, 1},
		{"ptmx", unix.S_IFCHR, 5, 2},
		{"null", unix.S_IFCHR, 1, 3},
		{"zero", unix.S_IFCHR, 1, 5},
		{"full", unix.S_IFCHR, 1, 7},
		{"random", unix.S_IFCHR, 1, 8},
		{"urandom", unix.S_IFCHR, 1, 9},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dev := unix.Mkdev(c.major, c.minor)
			assert.True(t, checkMknodDev(c.mode, dev))
		})
	}
}

func TestCheckMknodDevRejectsUnlisted(t *testing.T) {
	cases := []struct {
		name string
		mode uint32
		dev  uint64
	}{
		{"block device", unix.S_IFBLK, unix.Mkdev(8, 0)},
		{"arbitrary char device", unix.S_IFCHR, unix.Mkdev(200, 200)},
		{"fifo", unix.S_IFIFO, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.False(t, checkMknodDev(c.mode, c.dev))
		})
	}
}
