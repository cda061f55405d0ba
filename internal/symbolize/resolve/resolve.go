// Package resolve provides the per-backend Resolver implementations (ELF,
// GSYM, kernel) and the resolver map that dispatches an input address to
// the resolver whose runtime range contains it.
package resolve

import (
	"github.com/symblaze/symblaze/internal/symbolize/elf"
)

// AddrRange is a half-open runtime address range [Start, End).
type AddrRange struct {
	Start uint64
	End   uint64
}

// Contains reports whether addr lies within [Start, End).
func (r AddrRange) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// LineInfo is the source-location part of a symbolized result.
type LineInfo struct {
	File   string
	Line   int
	Column int
}

// Resolver resolves runtime addresses within one backend's range to
// symbol names and, optionally, line information.
type Resolver interface {
	// Range reports the runtime address range this resolver covers.
	Range() AddrRange
	// FindSymbol finds the symbol covering addr, returning its name and
	// runtime start address.
	FindSymbol(addr uint64) (name string, start uint64, err error)
	// FindAddressByName resolves a symbol name to zero or more matches.
	FindAddressByName(name string, opts elf.FindAddrOpts) ([]elf.SymbolInfo, error)
	// FindLineInfo returns source-location information for addr, or
	// symerr.Unsupported if this resolver carries none.
	FindLineInfo(addr uint64) (LineInfo, error)
	// Path returns the backing object's path, used for diagnostics and as
	// the Path of symbolized results.
	Path() string
}

func programHeaderSpan(phdrs []elf.Phdr64) (minVaddr, maxEnd uint64, ok bool) {
	first := true
	for _, ph := range phdrs {
		if ph.Type != elf.PTLoad {
			continue
		}
		end := ph.Vaddr + ph.Memsz
		if first || ph.Vaddr < minVaddr {
			minVaddr = ph.Vaddr
		}
		if first || end > maxEnd {
			maxEnd = end
		}
		first = false
	}
	return minVaddr, maxEnd, !first
}
