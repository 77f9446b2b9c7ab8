package kernel

import (
	"strconv"
	"strings"
)

// Reference is a files -R argument. The original command keeps all three
// interpretations of the string alive at once: a file descriptor number, a
// structure address, and a filename fragment.
type Reference struct {
	raw    string
	fd     int32
	hasFD  bool
	addr   uint64
	hasAdr bool
}

func ParseReference(s string) Reference {
	ref := Reference{raw: s}
	if fd, err := strconv.ParseInt(s, 10, 32); err == nil && fd >= 0 {
		ref.fd = int32(fd)
		ref.hasFD = true
	}
	trimmed := strings.TrimPrefix(strings.ToLower(s), "0x")
	if addr, err := strconv.ParseUint(trimmed, 16, 64); err == nil {
		ref.addr = addr
		ref.hasAdr = true
	}
	return ref
}

func (r Reference) String() string {
	return r.raw
}

// Matches reports whether an open-file row references r by fd number,
// structure address, or pathname fragment.
func (r Reference) Matches(of OpenFile) bool {
	if r.hasFD && of.FD == r.fd {
		return true
	}
	if r.hasAdr && (of.File == r.addr || of.Dentry == r.addr || of.Inode == r.addr) {
		return true
	}
	return r.raw != "" && strings.Contains(of.Path, r.raw)
}

// FilterOpenFiles returns the rows of open that reference r.
func FilterOpenFiles(ref Reference, open []OpenFile) []OpenFile {
	var matched []OpenFile
	for _, of := range open {
		if ref.Matches(of) {
			matched = append(matched, of)
		}
	}
	return matched
}
