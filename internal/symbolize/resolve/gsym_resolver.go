package resolve

import (
	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symbolize/gsym"
	"github.com/symblaze/symblaze/internal/symerr"
)

// GsymResolver resolves addresses against a GSYM context loaded at a
// fixed base address.
type GsymResolver struct {
	path string
	ctx  *gsym.Context
	base uint64
	rng  AddrRange
}

// NewGsymResolver builds a resolver for ctx, read from path, loaded at
// base.
func NewGsymResolver(path string, ctx *gsym.Context, base uint64) *GsymResolver {
	n := ctx.NumAddresses()
	var rng AddrRange
	if n > 0 {
		start, _ := ctx.AddrAt(0)
		last, _ := ctx.AddrAt(n - 1)
		info, _ := ctx.AddrInfo(n - 1)
		rng = AddrRange{Start: base + start, End: base + last + uint64(info.Size) + 1}
	}
	return &GsymResolver{path: path, ctx: ctx, base: base, rng: rng}
}

// Range implements Resolver.
func (r *GsymResolver) Range() AddrRange { return r.rng }

// Path implements Resolver.
func (r *GsymResolver) Path() string { return r.path }

// FindSymbol implements Resolver.
func (r *GsymResolver) FindSymbol(addr uint64) (string, uint64, error) {
	fileAddr := addr - r.base
	idx, ok := gsym.FindAddress(r.ctx, fileAddr)
	if !ok {
		return "", 0, symerr.Wrap(symerr.NotFound, "no GSYM symbol found for address 0x%x", addr)
	}
	found, err := r.ctx.AddrAt(idx)
	if err != nil {
		return "", 0, err
	}
	if fileAddr < found {
		return "", 0, symerr.Wrap(symerr.NotFound, "no GSYM symbol found for address 0x%x", addr)
	}

	info, err := r.ctx.AddrInfo(idx)
	if err != nil {
		return "", 0, err
	}
	name, err := r.ctx.GetStr(int(info.Name))
	if err != nil {
		return "", 0, err
	}
	return name, found + r.base, nil
}

// FindAddressByName implements Resolver. Name-to-address lookup is
// inefficient for GSYM's address-sorted layout and is not supported.
func (r *GsymResolver) FindAddressByName(string, elf.FindAddrOpts) ([]elf.SymbolInfo, error) {
	return nil, symerr.Wrap(symerr.Unsupported, "GSYM resolver does not support name-to-address lookup")
}

// FindLineInfo implements Resolver using the AddressInfo's LineTableInfo
// record, if present.
func (r *GsymResolver) FindLineInfo(addr uint64) (LineInfo, error) {
	fileAddr := addr - r.base
	idx, ok := gsym.FindAddress(r.ctx, fileAddr)
	if !ok {
		return LineInfo{}, symerr.Wrap(symerr.NotFound, "no GSYM symbol found for address 0x%x", addr)
	}
	found, err := r.ctx.AddrAt(idx)
	if err != nil {
		return LineInfo{}, err
	}

	info, err := r.ctx.AddrInfo(idx)
	if err != nil {
		return LineInfo{}, err
	}
	records, err := gsym.ParseAddressData(info.Data)
	if err != nil {
		return LineInfo{}, err
	}

	for _, rec := range records {
		if rec.Typ != gsym.InfoTypeLineTableInfo {
			continue
		}
		hdr, ops, err := gsym.ParseLineTableHeader(rec.Payload)
		if err != nil {
			return LineInfo{}, err
		}
		entries, err := gsym.RunLineTableVM(found, hdr, ops)
		if err != nil {
			return LineInfo{}, err
		}
		var best *gsym.LineEntry
		for i := range entries {
			if entries[i].Addr <= fileAddr && (best == nil || entries[i].Addr > best.Addr) {
				best = &entries[i]
			}
		}
		if best == nil {
			break
		}
		dirOff, fileOff, ok := r.ctx.FileInfo(best.File)
		var path string
		if ok {
			dir, _ := r.ctx.GetStr(int(dirOff))
			file, _ := r.ctx.GetStr(int(fileOff))
			if dir != "" {
				path = dir + "/" + file
			} else {
				path = file
			}
		}
		return LineInfo{File: path, Line: best.Line}, nil
	}
	return LineInfo{}, symerr.Wrap(symerr.NotFound, "no line information for address 0x%x", addr)
}
