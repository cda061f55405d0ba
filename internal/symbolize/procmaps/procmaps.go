// Package procmaps parses the /proc/<pid>/maps textual format into
// structured entries, used by the normalizer to translate runtime
// addresses into file-local ones.
package procmaps

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/symblaze/symblaze/internal/symerr"
)

// SelfPID is the sentinel process ID meaning "the calling process".
const SelfPID = 0

// Entry is one parsed VMA line from /proc/<pid>/maps.
type Entry struct {
	Start  uint64
	End    uint64
	Perms  string
	Offset uint64
	Dev    string
	Inode  uint64
	Path   string
}

// Executable reports whether the mapping is executable.
func (e Entry) Executable() bool {
	return len(e.Perms) >= 3 && e.Perms[2] == 'x'
}

// FileBacked reports whether the mapping refers to a regular file rather
// than an anonymous region, and is not a pseudo-path like [vdso] or
// [heap].
func (e Entry) FileBacked() bool {
	return e.Path != "" && !strings.HasPrefix(e.Path, "[") && e.Inode != 0
}

// Relevant reports whether the entry participates in symbolization: it
// must be executable, file-backed and non-special.
func (e Entry) Relevant() bool {
	return e.Executable() && e.FileBacked()
}

// Open reads and parses /proc/<pid>/maps. Pass SelfPID for the calling
// process.
func Open(pid int) ([]Entry, error) {
	path := procMapsPath(pid)
	f, err := os.Open(path) //nolint:gosec // path is built from a pid, not arbitrary user input.
	if err != nil {
		return nil, symerr.Wrap(symerr.IO, "open %s: %v", path, err)
	}
	defer f.Close() //nolint:errcheck

	return Parse(f)
}

func procMapsPath(pid int) string {
	if pid == SelfPID {
		return "/proc/self/maps"
	}
	return fmt.Sprintf("/proc/%d/maps", pid)
}

// Parse reads the /proc/<pid>/maps textual format from r.
//
// Format: "start-end perms offset dev inode pathname".
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		entry, ok := parseLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, symerr.Wrap(symerr.IO, "failed to read proc-maps: %v", err)
	}
	return entries, nil
}

func parseLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Entry{}, false
	}

	addrRange := strings.SplitN(fields[0], "-", 2)
	if len(addrRange) != 2 {
		return Entry{}, false
	}
	start, err := strconv.ParseUint(addrRange[0], 16, 64)
	if err != nil {
		return Entry{}, false
	}
	end, err := strconv.ParseUint(addrRange[1], 16, 64)
	if err != nil {
		return Entry{}, false
	}

	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return Entry{}, false
	}

	inode, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		inode = 0
	}

	var path string
	if len(fields) > 5 {
		path = strings.Join(fields[5:], " ")
	}

	return Entry{
		Start:  start,
		End:    end,
		Perms:  fields[1],
		Offset: offset,
		Dev:    fields[3],
		Inode:  inode,
		Path:   path,
	}, true
}
