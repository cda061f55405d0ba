package elf

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// elfBuilder assembles a minimal, valid little-endian ELF64 relocatable
// image with one PT_LOAD segment, a .symtab/.strtab pair, and a
// .note.gnu.build-id note, for use as test fixtures across this package.
type elfBuilder struct {
	symbols   []testSym
	buildID   []byte
	loadVaddr uint64
	loadSize  uint64
}

type testSym struct {
	name  string
	value uint64
	size  uint64
	typ   byte
	shndx uint16
}

func newELFBuilder() *elfBuilder {
	return &elfBuilder{loadVaddr: 0x1000, loadSize: 0x4000}
}

func (b *elfBuilder) addSymbol(name string, value, size uint64, typ byte) {
	b.symbols = append(b.symbols, testSym{name: name, value: value, size: size, typ: typ, shndx: 1})
}

func (b *elfBuilder) addUndefSymbol(name string) {
	b.symbols = append(b.symbols, testSym{name: name, shndx: SHNUndef})
}

func (b *elfBuilder) setBuildID(id []byte) { b.buildID = id }

func putStr(buf *bytes.Buffer, strs map[string]uint32, s string) uint32 {
	if s == "" {
		return 0
	}
	if off, ok := strs[s]; ok {
		return off
	}
	off := uint32(buf.Len())
	buf.WriteString(s)
	buf.WriteByte(0)
	strs[s] = off
	return off
}

// build returns the raw bytes of the assembled ELF image.
func (b *elfBuilder) build() []byte {
	// String tables.
	shstrtab := bytes.NewBuffer([]byte{0})
	shstrtabOffs := map[string]uint32{}
	strtab := bytes.NewBuffer([]byte{0})
	strtabOffs := map[string]uint32{}

	for _, s := range b.symbols {
		putStr(strtab, strtabOffs, s.name)
	}

	// Symbol table bytes (Sym64, 24 bytes each), entry 0 reserved/null.
	symtabBuf := &bytes.Buffer{}
	null := Sym64{}
	_ = binary.Write(symtabBuf, binary.LittleEndian, null)
	for _, s := range b.symbols {
		sym := Sym64{
			Name:  strtabOffs[s.name],
			Info:  s.typ,
			Other: 0,
			Shndx: s.shndx,
			Value: s.value,
			Size:  s.size,
		}
		_ = binary.Write(symtabBuf, binary.LittleEndian, sym)
	}

	var noteBuf []byte
	if b.buildID != nil {
		nb := &bytes.Buffer{}
		owner := append([]byte("GNU"), 0)
		_ = binary.Write(nb, binary.LittleEndian, Nhdr64{
			Namesz: uint32(len(owner)),
			Descsz: uint32(len(b.buildID)),
			Type:   3, // NT_GNU_BUILD_ID
		})
		nb.Write(owner)
		for nb.Len()%4 != 0 {
			nb.WriteByte(0)
		}
		nb.Write(b.buildID)
		for nb.Len()%4 != 0 {
			nb.WriteByte(0)
		}
		noteBuf = nb.Bytes()
	}

	// Section name strings.
	nameNull := putStr(shstrtab, shstrtabOffs, "")
	_ = nameNull
	nameSymtab := putStr(shstrtab, shstrtabOffs, ".symtab")
	nameStrtab := putStr(shstrtab, shstrtabOffs, ".strtab")
	nameShstrtab := putStr(shstrtab, shstrtabOffs, ".shstrtab")
	var nameNote uint32
	if noteBuf != nil {
		nameNote = putStr(shstrtab, shstrtabOffs, ".note.gnu.build-id")
	}

	const ehdrSize = 64
	const phdrSize = 56
	const shdrSize = 64
	phOff := uint64(ehdrSize)
	numPhdrs := 1

	dataOff := phOff + uint64(numPhdrs)*phdrSize
	// Lay out section payloads after program headers.
	symtabOff := dataOff
	symtabOff = align8(symtabOff)
	strtabOff := align8(symtabOff + uint64(symtabBuf.Len()))
	shstrtabOff := align8(strtabOff + uint64(strtab.Len()))
	var noteOff uint64
	endOff := align8(shstrtabOff + uint64(shstrtab.Len()))
	if noteBuf != nil {
		noteOff = endOff
		endOff = align8(noteOff + uint64(len(noteBuf)))
	}
	shOff := endOff

	numSections := 4 // NULL, .symtab, .strtab, .shstrtab
	if noteBuf != nil {
		numSections++
	}

	out := make([]byte, shOff+uint64(numSections)*shdrSize)

	ehdr := Ehdr64{
		Ident:     [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1},
		Type:      1, // ET_REL
		Machine:   0x3e,
		Version:   1,
		Phoff:     phOff,
		Shoff:     shOff,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(numPhdrs),
		Shentsize: shdrSize,
		Shnum:     uint16(numSections),
		Shstrndx:  3, // .shstrtab; the optional note section comes after it
	}
	writeAt(out, 0, ehdr)

	phdr := Phdr64{
		Type:   PTLoad,
		Flags:  PFExec,
		Offset: 0,
		Vaddr:  b.loadVaddr,
		Paddr:  b.loadVaddr,
		Filesz: b.loadSize,
		Memsz:  b.loadSize,
		Align:  0x1000,
	}
	writeAt(out, int(phOff), phdr)

	copy(out[symtabOff:], symtabBuf.Bytes())
	copy(out[strtabOff:], strtab.Bytes())
	copy(out[shstrtabOff:], shstrtab.Bytes())
	if noteBuf != nil {
		copy(out[noteOff:], noteBuf)
	}

	secs := []Shdr64{
		{}, // NULL
		{Name: nameSymtab, Type: SHTSymtab, Offset: symtabOff, Size: uint64(symtabBuf.Len()), Link: 2, EntSize: 24},
		{Name: nameStrtab, Type: SHTStrtab, Offset: strtabOff, Size: uint64(strtab.Len())},
		{Name: nameShstrtab, Type: SHTStrtab, Offset: shstrtabOff, Size: uint64(shstrtab.Len())},
	}
	if noteBuf != nil {
		secs = append(secs, Shdr64{Name: nameNote, Type: SHTNote, Offset: noteOff, Size: uint64(len(noteBuf))})
	}
	for i, s := range secs {
		writeAt(out, int(shOff)+i*shdrSize, s)
	}

	return out
}

func align8(off uint64) uint64 {
	if off%8 == 0 {
		return off
	}
	return off + (8 - off%8)
}

func writeAt(out []byte, off int, v any) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	copy(out[off:], buf.Bytes())
}

func openBuiltParser(t *testing.T, data []byte) *Parser {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "elf-*")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	p, err := OpenFile(f, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}
