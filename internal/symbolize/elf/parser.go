// Package elf parses ELF64 object files: header, section and program
// headers, symbol tables and their derived address- and name-sorted
// indices, and the GNU build-ID note. All derived state is computed lazily
// and cached for the lifetime of the Parser.
package elf

import (
	"bytes"
	"errors"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/symblaze/symblaze/internal/symbolize/rawio"
	"github.com/symblaze/symblaze/internal/symerr"
)

// nameEntry pairs a symbol's name-string offset with its index in the
// address-sorted symbol table, for the name-sorted index.
type nameEntry struct {
	nameOff uint32
	symIdx  int
}

// Parser is a parser for ELF64 files. It owns a memory mapping and hands
// out borrowed views into it; all views are valid for the Parser's
// lifetime.
type Parser struct {
	path   string
	file   *os.File
	mmap   *rawio.Mmap
	data   []byte
	logger zerolog.Logger

	mu           sync.Mutex
	ehdr         *Ehdr64
	shdrs        []Shdr64
	shstrtab     []byte
	phdrs        []Phdr64
	symtab       []Sym64 // address-sorted (stable)
	strtab       []byte
	nameIdx      []nameEntry // sorted by referenced C-string, byte order
	symtabSource string      // ".symtab" or ".dynsym", set once ensureSymtab runs
}

// Open opens and memory-maps the ELF file at path. logger receives Warn
// entries for non-fatal conditions discovered later, e.g. via BuildID; its
// zero value is a valid no-op logger.
func Open(path string, logger zerolog.Logger) (*Parser, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-supplied, like os.Open itself.
	if err != nil {
		return nil, symerr.Wrap(symerr.IO, "open %s: %v", path, err)
	}
	p, err := OpenFile(f, logger)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	p.path = path
	return p, nil
}

// OpenFile wraps an already-open file, taking ownership of it.
func OpenFile(file *os.File, logger zerolog.Logger) (*Parser, error) {
	m, err := rawio.MapFile(file)
	if err != nil {
		return nil, err
	}
	return &Parser{
		path:   file.Name(),
		file:   file,
		mmap:   m,
		data:   m.Bytes(),
		logger: logger.With().Str("component", "elf.Parser").Str("path", file.Name()).Logger(),
	}, nil
}

// Path returns the path the parser was opened from.
func (p *Parser) Path() string { return p.path }

// Close releases the memory mapping and the underlying file descriptor.
func (p *Parser) Close() error {
	var err error
	if p.mmap != nil {
		err = p.mmap.Close()
	}
	if p.file != nil {
		if cerr := p.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (p *Parser) ensureEhdr() (*Ehdr64, error) {
	if p.ehdr != nil {
		return p.ehdr, nil
	}
	c := rawio.NewCursor(p.data)
	ehdr, err := rawio.PODRef[Ehdr64](c)
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read ELF header: %v", err)
	}
	if !validMagic(ehdr.Ident) {
		return nil, symerr.Wrap(symerr.InvalidData, "bad ELF magic")
	}
	p.ehdr = &ehdr
	return p.ehdr, nil
}

func (p *Parser) ensureShdrs() ([]Shdr64, error) {
	if p.shdrs != nil {
		return p.shdrs, nil
	}
	ehdr, err := p.ensureEhdr()
	if err != nil {
		return nil, err
	}
	if int(ehdr.Shoff) > len(p.data) {
		return nil, symerr.Wrap(symerr.InvalidData, "e_shoff out of bounds")
	}
	c := rawio.NewCursor(p.data[ehdr.Shoff:])
	shdrs, err := rawio.PODSlice[Shdr64](c, int(ehdr.Shnum))
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read section headers: %v", err)
	}
	if int(ehdr.Shstrndx) >= len(shdrs) {
		return nil, symerr.Wrap(symerr.InvalidData, "e_shstrndx %d out of bounds (nsects=%d)", ehdr.Shstrndx, len(shdrs))
	}
	p.shdrs = shdrs
	return p.shdrs, nil
}

func (p *Parser) ensurePhdrs() ([]Phdr64, error) {
	if p.phdrs != nil {
		return p.phdrs, nil
	}
	ehdr, err := p.ensureEhdr()
	if err != nil {
		return nil, err
	}
	if int(ehdr.Phoff) > len(p.data) {
		return nil, symerr.Wrap(symerr.InvalidData, "e_phoff out of bounds")
	}
	c := rawio.NewCursor(p.data[ehdr.Phoff:])
	phdrs, err := rawio.PODSlice[Phdr64](c, int(ehdr.Phnum))
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read program headers: %v", err)
	}
	p.phdrs = phdrs
	return p.phdrs, nil
}

func (p *Parser) sectionRaw(shdr *Shdr64) ([]byte, error) {
	start := shdr.Offset
	end := start + shdr.Size
	if end > uint64(len(p.data)) {
		return nil, symerr.Wrap(symerr.InvalidData, "section data out of bounds")
	}
	return p.data[start:end], nil
}

func (p *Parser) ensureShstrtab() ([]byte, error) {
	if p.shstrtab != nil {
		return p.shstrtab, nil
	}
	ehdr, err := p.ensureEhdr()
	if err != nil {
		return nil, err
	}
	shdrs, err := p.ensureShdrs()
	if err != nil {
		return nil, err
	}
	raw, err := p.sectionRaw(&shdrs[ehdr.Shstrndx])
	if err != nil {
		return nil, err
	}
	p.shstrtab = raw
	return p.shstrtab, nil
}

// GetNumSections returns the number of section headers.
func (p *Parser) GetNumSections() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	shdrs, err := p.ensureShdrs()
	if err != nil {
		return 0, err
	}
	return len(shdrs), nil
}

// GetSectionName returns the name of section idx.
func (p *Parser) GetSectionName(idx int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	shdrs, err := p.ensureShdrs()
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(shdrs) {
		return "", symerr.Wrap(symerr.InvalidInput, "section index %d out of bounds", idx)
	}
	shstrtab, err := p.ensureShstrtab()
	if err != nil {
		return "", err
	}
	name, ok := extractCString(shstrtab, int(shdrs[idx].Name))
	if !ok {
		return "", symerr.Wrap(symerr.InvalidData, "invalid section name offset")
	}
	return name, nil
}

// FindSection returns the index of the section with the given name.
func (p *Parser) FindSection(name string) (int, error) {
	n, err := p.GetNumSections()
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		sn, err := p.GetSectionName(i)
		if err != nil {
			return 0, err
		}
		if sn == name {
			return i, nil
		}
	}
	return 0, symerr.Wrap(symerr.NotFound, "unable to find ELF section: %s", name)
}

// SectionData returns the raw bytes of section idx.
func (p *Parser) SectionData(idx int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	shdrs, err := p.ensureShdrs()
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(shdrs) {
		return nil, symerr.Wrap(symerr.InvalidInput, "section index %d out of bounds", idx)
	}
	return p.sectionRaw(&shdrs[idx])
}

// ProgramHeaders returns all program headers.
func (p *Parser) ProgramHeaders() ([]Phdr64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensurePhdrs()
}

func (p *Parser) ensureSymtab() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureSymtabLocked()
}

func (p *Parser) ensureSymtabLocked() error {
	if p.symtab != nil {
		return nil
	}

	idx, name, err := p.findSymtabSectionLocked()
	if err != nil {
		return err
	}
	shdrs, err := p.ensureShdrs()
	if err != nil {
		return err
	}
	raw, err := p.sectionRaw(&shdrs[idx])
	if err != nil {
		return err
	}

	c := rawio.NewCursor(raw)
	const symSize = 24 // sizeof(Sym64) with this field layout
	if len(raw)%symSize != 0 {
		return symerr.Wrap(symerr.InvalidData, "size of the %s section does not match a symbol record", name)
	}
	count := len(raw) / symSize
	syms, err := rawio.PODSlice[Sym64](c, count)
	if err != nil {
		return symerr.Wrap(symerr.InvalidData, "failed to read symbol table: %v", err)
	}

	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Value < syms[j].Value })
	p.symtab = syms
	p.symtabSource = name
	return nil
}

// findSymtabSectionLocked finds .symtab, falling back to .dynsym. Caller
// must hold p.mu. This duplicates the linear name scan of FindSection
// because FindSection itself takes the lock.
func (p *Parser) findSymtabSectionLocked() (int, string, error) {
	for _, name := range []string{".symtab", ".dynsym"} {
		shdrs, err := p.ensureShdrs()
		if err != nil {
			return 0, "", err
		}
		shstrtab, err := p.ensureShstrtab()
		if err != nil {
			return 0, "", err
		}
		for i, sh := range shdrs {
			sn, ok := extractCString(shstrtab, int(sh.Name))
			if ok && sn == name {
				return i, name, nil
			}
		}
	}
	return 0, "", symerr.Wrap(symerr.NotFound, "no .symtab or .dynsym section present")
}

func (p *Parser) ensureStrtab() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.strtab != nil {
		return nil
	}
	if err := p.ensureSymtabLocked(); err != nil {
		return err
	}
	strtabName := ".strtab"
	if p.symtabSource == ".dynsym" {
		strtabName = ".dynstr"
	}

	shdrs, err := p.ensureShdrs()
	if err != nil {
		return err
	}
	shstrtab, err := p.ensureShstrtab()
	if err != nil {
		return err
	}
	for i, sh := range shdrs {
		sn, ok := extractCString(shstrtab, int(sh.Name))
		if ok && sn == strtabName {
			raw, err := p.sectionRaw(&shdrs[i])
			if err != nil {
				return err
			}
			p.strtab = raw
			return nil
		}
	}
	return symerr.Wrap(symerr.NotFound, "no %s section present", strtabName)
}

func (p *Parser) ensureNameIndex() error {
	if err := p.ensureSymtab(); err != nil {
		return err
	}
	if err := p.ensureStrtab(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nameIdx != nil {
		return nil
	}

	idx := make([]nameEntry, len(p.symtab))
	for i, sym := range p.symtab {
		idx[i] = nameEntry{nameOff: sym.Name, symIdx: i}
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, _ := extractCString(p.strtab, int(idx[i].nameOff))
		b, _ := extractCString(p.strtab, int(idx[j].nameOff))
		return a < b
	})
	p.nameIdx = idx
	return nil
}

// FindSymbol finds the symbol of type stType whose address interval
// covers addr; see findSymbolIndex for the tie-break rule.
func (p *Parser) FindSymbol(addr uint64, stType byte) (string, uint64, error) {
	if err := p.ensureSymtab(); err != nil {
		return "", 0, err
	}
	if err := p.ensureStrtab(); err != nil {
		return "", 0, err
	}

	p.mu.Lock()
	idx, ok := findSymbolIndex(p.symtab, addr, stType)
	if !ok {
		p.mu.Unlock()
		return "", 0, symerr.Wrap(symerr.NotFound, "no symbol found for address 0x%x", addr)
	}
	sym := p.symtab[idx]
	strtab := p.strtab
	p.mu.Unlock()

	name, ok := extractCString(strtab, int(sym.Name))
	if !ok {
		return "", 0, symerr.Wrap(symerr.InvalidData, "invalid symbol name offset")
	}
	return name, sym.Value, nil
}

// findSymbolIndex implements the address-to-symbol search of spec §4.2
// over an address-sorted (stable) symbol slice.
func findSymbolIndex(syms []Sym64, addr uint64, stType byte) (int, bool) {
	// Greatest index with Value <= addr, over the full (unfiltered) table.
	hi := sort.Search(len(syms), func(i int) bool { return syms[i].Value > addr }) - 1

	for i := hi; i >= 0; i-- {
		s := syms[i]
		if s.Type() != stType || s.Shndx == SHNUndef {
			continue
		}

		// Found the greatest qualifying address; gather the contiguous
		// run of entries sharing that exact value to apply the tie-break.
		value := s.Value
		lo := i
		for lo > 0 && syms[lo-1].Value == value {
			lo--
		}
		top := i
		for top+1 < len(syms) && syms[top+1].Value == value {
			top++
		}

		best := -1
		for k := lo; k <= top; k++ {
			if syms[k].Type() != stType || syms[k].Shndx == SHNUndef {
				continue
			}
			if best == -1 {
				best = k
				continue
			}
			// Prefer nonzero size; among equals, the stable sort already
			// preserves ascending original index, so the first candidate
			// found wins ties.
			if syms[best].Size == 0 && syms[k].Size != 0 {
				best = k
			}
		}

		if syms[best].Size != 0 && addr >= syms[best].Value+syms[best].Size {
			return -1, false
		}
		return best, true
	}
	return -1, false
}

// FindAddress returns every defined symbol with an exact name match.
func (p *Parser) FindAddress(name string, opts FindAddrOpts) ([]SymbolInfo, error) {
	if opts.SymType == SymbolVariable {
		return nil, symerr.Wrap(symerr.Unsupported, "variable symbol lookup is not implemented")
	}
	if err := p.ensureNameIndex(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.nameIdx
	strtab := p.strtab
	symtab := p.symtab

	first := sort.Search(len(idx), func(i int) bool {
		s, _ := extractCString(strtab, int(idx[i].nameOff))
		return s >= name
	})

	var found []SymbolInfo
	for i := first; i < len(idx); i++ {
		s, _ := extractCString(strtab, int(idx[i].nameOff))
		if s != name {
			break
		}
		sym := symtab[idx[i].symIdx]
		if sym.Shndx == SHNUndef {
			continue
		}
		found = append(found, SymbolInfo{
			Name:    name,
			Address: sym.Value,
			Size:    sym.Size,
			Type:    SymbolFunction,
		})
	}
	return found, nil
}

// FindAddressRegex returns every defined symbol whose name matches pattern.
func (p *Parser) FindAddressRegex(pattern string, opts FindAddrOpts) ([]SymbolInfo, error) {
	if opts.SymType == SymbolVariable {
		return nil, symerr.Wrap(symerr.Unsupported, "variable symbol lookup is not implemented")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidInput, "invalid regex %q: %v", pattern, err)
	}
	if err := p.ensureNameIndex(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var found []SymbolInfo
	for _, e := range p.nameIdx {
		name, ok := extractCString(p.strtab, int(e.nameOff))
		if !ok || !re.MatchString(name) {
			continue
		}
		sym := p.symtab[e.symIdx]
		if sym.Shndx == SHNUndef {
			continue
		}
		found = append(found, SymbolInfo{
			Name:    name,
			Address: sym.Value,
			Size:    sym.Size,
			Type:    SymbolFunction,
		})
	}
	return found, nil
}

// FindFileOffset maps a file-local address to a file offset via the
// PT_LOAD program header that contains it.
func (p *Parser) FindFileOffset(addr uint64) (uint64, bool, error) {
	phdrs, err := p.ProgramHeaders()
	if err != nil {
		return 0, false, err
	}
	for _, ph := range phdrs {
		if ph.Type != PTLoad {
			continue
		}
		if addr >= ph.Vaddr && addr < ph.Vaddr+ph.Memsz {
			return addr - ph.Vaddr + ph.Offset, true, nil
		}
	}
	return 0, false, nil
}

// BuildID extracts the GNU build-ID from .note.gnu.build-id, returning
// (nil, nil) if the section is absent, of the wrong type, or carries an
// owner name other than "GNU".
func (p *Parser) BuildID() ([]byte, error) {
	idx, err := p.FindSection(".note.gnu.build-id")
	if err != nil {
		if errors.Is(err, symerr.NotFound) {
			p.logger.Warn().Msg("no .note.gnu.build-id section; binary appears stripped of its build-id")
			return nil, nil
		}
		return nil, err
	}

	p.mu.Lock()
	shdrs := p.shdrs
	p.mu.Unlock()
	if shdrs[idx].Type != SHTNote {
		p.logger.Warn().Msg(".note.gnu.build-id section has the wrong section type")
		return nil, nil
	}

	data, err := p.SectionData(idx)
	if err != nil {
		return nil, err
	}
	c := rawio.NewCursor(data)
	nhdr, err := rawio.PODRef[Nhdr64](c)
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read build-id note header: %v", err)
	}
	owner, err := c.Bytes(int(nhdr.Namesz))
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read build-id owner: %v", err)
	}
	if !bytes.Equal(bytes.TrimRight(owner, "\x00"), []byte("GNU")) {
		p.logger.Warn().Str("owner", string(bytes.TrimRight(owner, "\x00"))).Msg("build-id note has a non-GNU owner")
		return nil, nil
	}
	if err := c.Align(4); err != nil {
		p.logger.Warn().Msg("build-id note padding is malformed; treating build-id as absent")
		return nil, nil //nolint:nilerr // malformed padding: treat as absent, per spec §4.5.
	}
	id, err := c.Bytes(int(nhdr.Descsz))
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read build-id bytes: %v", err)
	}
	out := make([]byte, len(id))
	copy(out, id)
	return out, nil
}
