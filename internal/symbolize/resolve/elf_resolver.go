package resolve

import (
	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symerr"
)

// ElfResolver resolves addresses within a single ELF object loaded at a
// fixed base address.
type ElfResolver struct {
	parser *elf.Parser
	base   uint64
	rng    AddrRange
}

// NewElfResolver builds a resolver for parser loaded at base. The
// resolver's range spans the lowest to highest PT_LOAD segment,
// translated by base.
func NewElfResolver(parser *elf.Parser, base uint64) (*ElfResolver, error) {
	phdrs, err := parser.ProgramHeaders()
	if err != nil {
		return nil, err
	}
	minVaddr, maxEnd, ok := programHeaderSpan(phdrs)
	if !ok {
		return nil, symerr.Wrap(symerr.InvalidData, "%s has no PT_LOAD segments", parser.Path())
	}
	return &ElfResolver{
		parser: parser,
		base:   base,
		rng:    AddrRange{Start: base + minVaddr, End: base + maxEnd},
	}, nil
}

// Range implements Resolver.
func (r *ElfResolver) Range() AddrRange { return r.rng }

// Path implements Resolver.
func (r *ElfResolver) Path() string { return r.parser.Path() }

// FindSymbol implements Resolver.
func (r *ElfResolver) FindSymbol(addr uint64) (string, uint64, error) {
	name, value, err := r.parser.FindSymbol(addr-r.base, elf.STTFunc)
	if err != nil {
		return "", 0, err
	}
	return name, value + r.base, nil
}

// FindAddressByName implements Resolver.
func (r *ElfResolver) FindAddressByName(name string, opts elf.FindAddrOpts) ([]elf.SymbolInfo, error) {
	syms, err := r.parser.FindAddress(name, opts)
	if err != nil {
		return nil, err
	}
	out := make([]elf.SymbolInfo, len(syms))
	for i, s := range syms {
		s.Address += r.base
		out[i] = s
	}
	return out, nil
}

// FindLineInfo implements Resolver. Line information requires DWARF or a
// paired GSYM file, neither of which a bare ELF resolver carries.
func (r *ElfResolver) FindLineInfo(uint64) (LineInfo, error) {
	return LineInfo{}, symerr.Wrap(symerr.Unsupported, "ELF resolver does not provide line information")
}
