// Package gsym reads the GSYM compact symbol/line-table format: a fixed
// header, an address table, a parallel address-data offset table, a file
// table, a string table, and per-symbol AddressInfo records interpreted by
// a small line-table virtual machine.
package gsym

const (
	// Magic is the 4-byte magic number 'GSYM', read little-endian.
	Magic uint32 = 0x4D595347
	// Version is the only GSYM version this reader understands.
	Version uint16 = 1

	headerFixedSize = 4 + 2 + 1 + 1 + 8 + 4 + 4 + 4 + 20
)

// AddressInfo payload record types.
const (
	InfoTypeEndOfList     uint32 = 0
	InfoTypeLineTableInfo uint32 = 1
	InfoTypeInlineInfo    uint32 = 2
)

// Header is the fixed-size GSYM header.
type Header struct {
	Magic        uint32
	Version      uint16
	AddrOffSize  uint8
	UUIDSize     uint8
	BaseAddress  uint64
	NumAddrs     uint32
	StrtabOffset uint32
	StrtabSize   uint32
	UUID         [20]byte
}

// AddressInfo describes the symbol at a given address-table index: its
// size, the string-table offset of its name, and the raw bytes of its
// trailing (typ, length, payload) record stream.
type AddressInfo struct {
	Size uint32
	Name uint32
	Data []byte
}

// AddressData is one decoded (typ, length, payload) record from an
// AddressInfo's trailing data.
type AddressData struct {
	Typ     uint32
	Length  uint32
	Payload []byte
}
