package procfs

import (
	"bufio"
	"io"
	"strings"
)

// CGroups is the set of cgroup hierarchies a task belongs to, parsed
// from /proc/<pid>/cgroup. V1 holds one path per named v1 controller;
// V2, when non-empty, holds the unified hierarchy path (the line whose
// middle field is empty).
type CGroups struct {
	V1 map[string]string
	V2 string
}

// HasV1 reports whether any v1 controller hierarchy was found. Its
// presence alongside a V2 entry indicates a hybrid hierarchy, which
// changes the base path used to migrate into the v2 "unified/" tree
// (see usercaps.Apply).
func (c CGroups) HasV1() bool {
	return len(c.V1) > 0
}

// ParseCGroups parses the "N:name1,name2,...:/path" lines of
// /proc/<pid>/cgroup. A line with an empty controller field
// ("N:::/path") is the unified v2 entry.
func ParseCGroups(r io.Reader) (CGroups, error) {
	cg := CGroups{V1: make(map[string]string)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		controllers, path := parts[1], parts[2]
		if controllers == "" {
			cg.V2 = path
			continue
		}
		for _, name := range strings.Split(controllers, ",") {
			cg.V1[name] = path
		}
	}
	if err := sc.Err(); err != nil {
		return CGroups{}, err
	}
	return cg, nil
}
