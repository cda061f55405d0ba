package resolve

import (
	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symbolize/procmaps"
	"github.com/symblaze/symblaze/internal/symerr"
)

// ProcessEntryResolver resolves addresses within a single proc-maps
// mapping of an ELF object: the runtime range is the mapping's own
// [start, end), and translation to a file-local address goes through the
// mapping's file offset rather than a simple base subtraction.
type ProcessEntryResolver struct {
	parser *elf.Parser
	entry  procmaps.Entry
	rng    AddrRange
}

// NewProcessEntryResolver builds a resolver for one relevant proc-maps
// entry backed by parser.
func NewProcessEntryResolver(parser *elf.Parser, entry procmaps.Entry) *ProcessEntryResolver {
	return &ProcessEntryResolver{
		parser: parser,
		entry:  entry,
		rng:    AddrRange{Start: entry.Start, End: entry.End},
	}
}

// Range implements Resolver.
func (r *ProcessEntryResolver) Range() AddrRange { return r.rng }

// Path implements Resolver.
func (r *ProcessEntryResolver) Path() string { return r.entry.Path }

func (r *ProcessEntryResolver) fileLocalAddr(addr uint64) (uint64, error) {
	fileOff := addr - r.entry.Start + r.entry.Offset
	phdrs, err := r.parser.ProgramHeaders()
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
	return 0, symerr.Wrap(symerr.InvalidInput, "failed to find ELF segment in %s containing file offset 0x%x", r.entry.Path, fileOff)
}

// FindSymbol implements Resolver.
func (r *ProcessEntryResolver) FindSymbol(addr uint64) (string, uint64, error) {
	fileAddr, err := r.fileLocalAddr(addr)
	if err != nil {
		return "", 0, err
	}
	name, value, err := r.parser.FindSymbol(fileAddr, elf.STTFunc)
	if err != nil {
		return "", 0, err
	}
	return name, value - fileAddr + addr, nil
}

// FindAddressByName implements Resolver.
func (r *ProcessEntryResolver) FindAddressByName(name string, opts elf.FindAddrOpts) ([]elf.SymbolInfo, error) {
	return r.parser.FindAddress(name, opts)
}

// FindLineInfo implements Resolver. A plain ELF mapping carries no line
// information.
func (r *ProcessEntryResolver) FindLineInfo(uint64) (LineInfo, error) {
	return LineInfo{}, symerr.Wrap(symerr.Unsupported, "process resolver does not provide line information")
}
