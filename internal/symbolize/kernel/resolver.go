package kernel

import (
	"errors"
	"sync"

	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symerr"
)

// Resolver resolves kernel addresses to symbol names, combining a
// kallsyms symbol list (address only, no size) with an optional kernel
// image ELF resolver (has size, enabling precise containment checks).
type Resolver struct {
	symbols []Symbol // address-sorted
	image   *elf.Parser

	mu    sync.Mutex
	cache map[uint64]Symbol
}

// NewResolver builds a Resolver from a kallsyms symbol list and an
// optional kernel image parser (nil if unavailable).
func NewResolver(symbols []Symbol, image *elf.Parser) *Resolver {
	return &Resolver{
		symbols: sortSymbols(symbols),
		image:   image,
		cache:   make(map[uint64]Symbol),
	}
}

// FindSymbol resolves addr to a symbol name and its address. It consults
// the kernel image first, since it carries size information and so can
// reject addresses past a symbol's end; it falls back to kallsyms, which
// has no such bound and always attributes addr to the nearest symbol at
// or below it.
func (r *Resolver) FindSymbol(addr uint64) (string, uint64, error) {
	if r.image != nil {
		name, value, err := r.image.FindSymbol(addr, elf.STTFunc)
		if err == nil {
			return name, value, nil
		}
		if !errors.Is(err, symerr.NotFound) {
			return "", 0, err
		}
	}

	r.mu.Lock()
	if sym, ok := r.cache[addr]; ok {
		r.mu.Unlock()
		return sym.displayName(), sym.Address, nil
	}
	r.mu.Unlock()

	idx, ok := findSymbolIndex(r.symbols, addr)
	if !ok {
		return "", 0, symerr.Wrap(symerr.NotFound, "no kernel symbol found for address 0x%x", addr)
	}
	sym := r.symbols[idx]
	name := sym.displayName()

	r.mu.Lock()
	r.cache[addr] = sym
	r.mu.Unlock()

	return name, sym.Address, nil
}

// SymbolCount returns the number of kallsyms entries loaded.
func (r *Resolver) SymbolCount() int { return len(r.symbols) }
