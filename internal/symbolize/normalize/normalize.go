// Package normalize converts runtime addresses captured in a process into
// file-local addresses plus per-binary identity metadata, so that
// symbolization can happen later, possibly on a different machine than
// where the addresses were captured.
package normalize

import (
	"github.com/rs/zerolog"

	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symbolize/procmaps"
	"github.com/symblaze/symblaze/internal/symerr"
)

// Meta is the per-binary (or per-unknown-address) metadata attached to a
// normalized address, via its index into NormalizedAddrs.Meta.
type Meta interface {
	isMeta()
}

// Binary identifies the ELF object a normalized address belongs to.
type Binary struct {
	Path    string
	BuildID []byte // nil if unavailable
}

func (Binary) isMeta() {}

// Unknown marks an address that could not be normalized: it fell outside
// every relevant mapping, or its mapping disappeared since capture.
type Unknown struct{}

func (Unknown) isMeta() {}

// AddrMeta pairs a normalized (file-local) address with the index of its
// metadata in NormalizedAddrs.Meta.
type AddrMeta struct {
	Addr      uint64
	MetaIndex int
}

// NormalizedAddrs is the result of normalizing a list of runtime
// addresses: one AddrMeta per input address, in input order, plus a
// deduplicated Meta list.
type NormalizedAddrs struct {
	Addrs []AddrMeta
	Meta  []Meta
}

// UserAddrs normalizes addrs, a strictly-ascending list of runtime
// addresses captured in the process identified by pid (procmaps.SelfPID
// for the calling process).
//
// Unknown addresses are not an error: they are reported as Unknown meta
// entries, and all of them share a single Unknown entry. logger receives
// the Warn entries emitted by the underlying elf.Open/BuildID calls; its
// zero value is a valid no-op logger.
func UserAddrs(addrs []uint64, pid int, logger zerolog.Logger) (*NormalizedAddrs, error) {
	entries, err := procmaps.Open(pid)
	if err != nil {
		return nil, err
	}

	relevant := make([]procmaps.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Relevant() {
			relevant = append(relevant, e)
		}
	}
	if len(relevant) == 0 {
		return nil, symerr.Wrap(symerr.UnexpectedEOF, "proc maps for pid %d has no relevant entries", pid)
	}

	result := &NormalizedAddrs{Addrs: make([]AddrMeta, 0, len(addrs))}
	metaLookup := map[string]int{}
	unknownIdx := -1

	addUnknown := func(addr uint64) {
		if unknownIdx == -1 {
			unknownIdx = len(result.Meta)
			result.Meta = append(result.Meta, Unknown{})
		}
		result.Addrs = append(result.Addrs, AddrMeta{Addr: addr, MetaIndex: unknownIdx})
	}

	curIdx := 0
	cur := relevant[0]
	var prevAddr uint64
	if len(addrs) > 0 {
		prevAddr = addrs[0]
	}

	for _, addr := range addrs {
		if addr < prevAddr {
			return nil, symerr.Wrap(symerr.InvalidInput, "addresses to normalize are not sorted")
		}
		prevAddr = addr

		if addr < cur.Start {
			addUnknown(addr)
			continue
		}

		exhausted := false
		for addr >= cur.End {
			curIdx++
			if curIdx >= len(relevant) {
				exhausted = true
				break
			}
			cur = relevant[curIdx]
		}
		if exhausted {
			addUnknown(addr)
			continue
		}

		metaIdx, ok := metaLookup[cur.Path]
		if !ok {
			buildID, err := readBuildID(cur.Path, logger)
			if err != nil {
				return nil, err
			}
			metaIdx = len(result.Meta)
			result.Meta = append(result.Meta, Binary{Path: cur.Path, BuildID: buildID})
			metaLookup[cur.Path] = metaIdx
		}

		normAddr, err := normalizeElfAddr(addr, cur, logger)
		if err != nil {
			return nil, err
		}
		result.Addrs = append(result.Addrs, AddrMeta{Addr: normAddr, MetaIndex: metaIdx})
	}

	return result, nil
}

func readBuildID(path string, logger zerolog.Logger) ([]byte, error) {
	p, err := elf.Open(path, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = p.Close() }()
	return p.BuildID()
}

func normalizeElfAddr(addr uint64, entry procmaps.Entry, logger zerolog.Logger) (uint64, error) {
	fileOff := addr - entry.Start + entry.Offset

	p, err := elf.Open(entry.Path, logger)
	if err != nil {
		return 0, err
	}
	defer func() { _ = p.Close() }()

	phdrs, err := p.ProgramHeaders()
	if err != nil {
		return 0, err
	}
	for _, ph := range phdrs {
		if ph.Type != elf.PTLoad {
			continue
		}
		if fileOff >= ph.Offset && fileOff < ph.Offset+ph.Memsz {
			return fileOff - ph.Offset + ph.Vaddr, nil
		}
	}
	return 0, symerr.Wrap(symerr.InvalidInput, "failed to find ELF segment in %s containing file offset 0x%x", entry.Path, fileOff)
}
