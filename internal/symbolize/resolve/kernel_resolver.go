package resolve

import (
	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symbolize/kernel"
	"github.com/symblaze/symblaze/internal/symerr"
)

// KernelResolver adapts a kernel.Resolver (kallsyms plus optional kernel
// image) to the Resolver interface, covering the entire kernel address
// space.
type KernelResolver struct {
	inner *kernel.Resolver
	rng   AddrRange
}

// NewKernelResolver wraps inner with the given runtime range (typically
// the canonical kernel half of the virtual address space).
func NewKernelResolver(inner *kernel.Resolver, rng AddrRange) *KernelResolver {
	return &KernelResolver{inner: inner, rng: rng}
}

// Range implements Resolver.
func (r *KernelResolver) Range() AddrRange { return r.rng }

// Path implements Resolver.
func (r *KernelResolver) Path() string { return "kernel" }

// FindSymbol implements Resolver.
func (r *KernelResolver) FindSymbol(addr uint64) (string, uint64, error) {
	return r.inner.FindSymbol(addr)
}

// FindAddressByName implements Resolver. Name-to-address lookup against
// the kernel symbol set is not implemented.
func (r *KernelResolver) FindAddressByName(string, elf.FindAddrOpts) ([]elf.SymbolInfo, error) {
	return nil, symerr.Wrap(symerr.Unsupported, "kernel resolver does not support name-to-address lookup")
}

// FindLineInfo implements Resolver. Kernel symbolization has no line
// information available.
func (r *KernelResolver) FindLineInfo(uint64) (LineInfo, error) {
	return LineInfo{}, symerr.Wrap(symerr.Unsupported, "kernel resolver does not provide line information")
}
