package procfs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Uids holds the four uid (or gid) values tracked by the kernel per task,
// as reported by the Uid:/Gid: lines of /proc/<pid>/status.
type Uids struct {
	Real, Effective, Saved, FS uint32
}

// Capabilities holds the three capability sets tracked for a task, each
// as a 64-bit bitmask matching the kernel's CapInh/CapPrm/CapEff fields.
// The bounding set is intentionally not tracked here; it cannot be
// restored non-destructively from user space once dropped.
type Capabilities struct {
	Inheritable uint64
	Permitted   uint64
	Effective   uint64
}

// ProcStatus is the subset of /proc/<pid>/status this daemon needs in
// order to reproduce a caller's permission environment.
type ProcStatus struct {
	Uid   Uids
	Gid   Uids
	Caps  Capabilities
	Umask uint32
}

// ParseStatus parses the lines of /proc/<pid>/status relevant to
// permission-snapshot capture. Unrecognized lines are ignored; missing
// fields retain zero values, matching kernels where e.g. Umask: is not
// present.
func ParseStatus(r io.Reader) (ProcStatus, error) {
	var st ProcStatus
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		var err error
		switch key {
		case "Uid":
			st.Uid, err = parseUids(rest)
		case "Gid":
			st.Gid, err = parseUids(rest)
		case "CapInh":
			st.Caps.Inheritable, err = parseHex64(rest)
		case "CapPrm":
			st.Caps.Permitted, err = parseHex64(rest)
		case "CapEff":
			st.Caps.Effective, err = parseHex64(rest)
		case "Umask":
			st.Umask, err = parseOctal(rest)
		}
		if err != nil {
			return ProcStatus{}, fmt.Errorf("procfs: parsing %q: %w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return ProcStatus{}, err
	}
	return st, nil
}

func parseUids(rest string) (Uids, error) {
	fields := strings.Fields(rest)
	if len(fields) < 4 {
		return Uids{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	var vals [4]uint32
	for i := 0; i < 4; i++ {
		n, err := strconv.ParseUint(fields[i], 10, 32)
		if err != nil {
			return Uids{}, err
		}
		vals[i] = uint32(n)
	}
	return Uids{Real: vals[0], Effective: vals[1], Saved: vals[2], FS: vals[3]}, nil
}

func parseHex64(rest string) (uint64, error) {
	return strconv.ParseUint(rest, 16, 64)
}

func parseOctal(rest string) (uint32, error) {
	n, err := strconv.ParseUint(rest, 8, 32)
	return uint32(n), err
}
