package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserSectionsAndHeader(t *testing.T) {
	b := newELFBuilder()
	b.addSymbol("main", 0x1100, 0x40, STTFunc)
	p := openBuiltParser(t, b.build())

	n, err := p.GetNumSections()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	idx, err := p.FindSection(".symtab")
	require.NoError(t, err)
	name, err := p.GetSectionName(idx)
	require.NoError(t, err)
	assert.Equal(t, ".symtab", name)

	_, err = p.FindSection(".does.not.exist")
	require.Error(t, err)
}

func TestParserFindSymbolExact(t *testing.T) {
	b := newELFBuilder()
	b.addSymbol("foo", 0x1000, 0x10, STTFunc)
	b.addSymbol("bar", 0x2000, 0x20, STTFunc)
	p := openBuiltParser(t, b.build())

	name, value, err := p.FindSymbol(0x1000, STTFunc)
	require.NoError(t, err)
	assert.Equal(t, "foo", name)
	assert.Equal(t, uint64(0x1000), value)

	name, _, err = p.FindSymbol(0x1008, STTFunc)
	require.NoError(t, err)
	assert.Equal(t, "foo", name)

	_, _, err = p.FindSymbol(0x1010, STTFunc)
	assert.Error(t, err, "address past foo's size must not resolve to foo")

	name, _, err = p.FindSymbol(0x2005, STTFunc)
	require.NoError(t, err)
	assert.Equal(t, "bar", name)
}

func TestParserFindSymbolUndefSkipped(t *testing.T) {
	b := newELFBuilder()
	b.addUndefSymbol("extern_fn")
	b.addSymbol("local_fn", 0x1000, 0x10, STTFunc)
	p := openBuiltParser(t, b.build())

	name, _, err := p.FindSymbol(0x1000, STTFunc)
	require.NoError(t, err)
	assert.Equal(t, "local_fn", name)
}

func TestParserFindSymbolTieBreakPrefersNonzeroSize(t *testing.T) {
	b := newELFBuilder()
	b.addSymbol("zero_size", 0x1000, 0, STTFunc)
	b.addSymbol("has_size", 0x1000, 0x10, STTFunc)
	p := openBuiltParser(t, b.build())

	name, _, err := p.FindSymbol(0x1000, STTFunc)
	require.NoError(t, err)
	assert.Equal(t, "has_size", name)
}

func TestParserFindSymbolWrongType(t *testing.T) {
	b := newELFBuilder()
	b.addSymbol("a_var", 0x1000, 0x8, STTObject)
	p := openBuiltParser(t, b.build())

	_, _, err := p.FindSymbol(0x1000, STTFunc)
	assert.Error(t, err)
}

func TestParserFindAddressExactName(t *testing.T) {
	b := newELFBuilder()
	b.addSymbol("foo", 0x1000, 0x10, STTFunc)
	b.addSymbol("foobar", 0x2000, 0x10, STTFunc)
	p := openBuiltParser(t, b.build())

	got, err := p.FindAddress("foo", FindAddrOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(0x1000), got[0].Address)
}

func TestParserFindAddressRegex(t *testing.T) {
	b := newELFBuilder()
	b.addSymbol("handle_get", 0x1000, 0x10, STTFunc)
	b.addSymbol("handle_post", 0x1100, 0x10, STTFunc)
	b.addSymbol("other", 0x1200, 0x10, STTFunc)
	p := openBuiltParser(t, b.build())

	got, err := p.FindAddressRegex("^handle_", FindAddrOpts{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParserFindFileOffset(t *testing.T) {
	b := newELFBuilder()
	p := openBuiltParser(t, b.build())

	off, ok, err := p.FindFileOffset(b.loadVaddr + 0x10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0x10), off)

	_, ok, err = p.FindFileOffset(0xffffffff)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParserBuildID(t *testing.T) {
	b := newELFBuilder()
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	b.setBuildID(want)
	p := openBuiltParser(t, b.build())

	got, err := p.BuildID()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParserBuildIDAbsent(t *testing.T) {
	b := newELFBuilder()
	p := openBuiltParser(t, b.build())

	got, err := p.BuildID()
	require.NoError(t, err)
	assert.Nil(t, got)
}
