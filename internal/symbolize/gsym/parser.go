package gsym

import (
	"sort"

	"github.com/symblaze/symblaze/internal/symbolize/rawio"
	"github.com/symblaze/symblaze/internal/symerr"
)

// Context holds the parsed sections of a standalone GSYM file. All slices
// are borrowed views into the raw bytes passed to ParseHeader.
type Context struct {
	header         Header
	addrTab        []byte
	addrDataOffTab []byte
	fileTab        []byte
	strTab         []byte
	raw            []byte
}

// ParseHeader parses the GSYM header and locates the address table,
// address-data offset table, file table, and string table within data.
func ParseHeader(data []byte) (*Context, error) {
	c := rawio.NewCursor(data)

	magic, err := c.Uint32LE()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read GSYM magic: %v", err)
	}
	if magic != Magic {
		return nil, symerr.Wrap(symerr.InvalidData, "invalid GSYM magic number")
	}
	version, err := c.Uint16LE()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read GSYM version: %v", err)
	}
	if version != Version {
		return nil, symerr.Wrap(symerr.InvalidData, "unsupported GSYM version %d", version)
	}
	addrOffSize, err := c.Uint8()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read addr_off_size: %v", err)
	}
	switch addrOffSize {
	case 1, 2, 4, 8:
	default:
		return nil, symerr.Wrap(symerr.InvalidData, "invalid addr_off_size %d", addrOffSize)
	}
	uuidSize, err := c.Uint8()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read uuid_size: %v", err)
	}
	baseAddress, err := c.Uint64LE()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read base_address: %v", err)
	}
	numAddrs, err := c.Uint32LE()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read num_addrs: %v", err)
	}
	strtabOffset, err := c.Uint32LE()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read strtab_offset: %v", err)
	}
	strtabSize, err := c.Uint32LE()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read strtab_size: %v", err)
	}
	uuidBytes, err := c.Bytes(20)
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read uuid: %v", err)
	}
	var uuid [20]byte
	copy(uuid[:], uuidBytes)

	addrTabLen := int(numAddrs) * int(addrOffSize)
	addrTab, err := c.Bytes(addrTabLen)
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "address table out of bounds: %v", err)
	}
	if err := c.Align(4); err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to align to address-data offset table: %v", err)
	}
	addrDataOffTab, err := c.Bytes(int(numAddrs) * 4)
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "address-data offset table out of bounds: %v", err)
	}

	fileCount, err := c.Uint32LE()
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "failed to read file count: %v", err)
	}
	fileTab, err := c.Bytes(int(fileCount) * 8)
	if err != nil {
		return nil, symerr.Wrap(symerr.InvalidData, "file table out of bounds: %v", err)
	}

	strEnd := int(strtabOffset) + int(strtabSize)
	if strtabOffset < 0 || strEnd > len(data) {
		return nil, symerr.Wrap(symerr.InvalidData, "string table out of bounds")
	}
	strTab := data[strtabOffset:strEnd]
	if strtabSize > 0 && strTab[len(strTab)-1] != 0 {
		return nil, symerr.Wrap(symerr.InvalidData, "string table does not terminate with a null byte")
	}

	return &Context{
		header: Header{
			Magic:        magic,
			Version:      version,
			AddrOffSize:  addrOffSize,
			UUIDSize:     uuidSize,
			BaseAddress:  baseAddress,
			NumAddrs:     numAddrs,
			StrtabOffset: strtabOffset,
			StrtabSize:   strtabSize,
			UUID:         uuid,
		},
		addrTab:        addrTab,
		addrDataOffTab: addrDataOffTab,
		fileTab:        fileTab,
		strTab:         strTab,
		raw:            data,
	}, nil
}

// Header returns the parsed GSYM header.
func (c *Context) Header() Header { return c.header }

// NumAddresses returns the number of entries in the address table.
func (c *Context) NumAddresses() int { return int(c.header.NumAddrs) }

// AddrAt returns the file-local address of address-table entry idx.
func (c *Context) AddrAt(idx int) (uint64, error) {
	if idx < 0 || idx >= c.NumAddresses() {
		return 0, symerr.Wrap(symerr.InvalidInput, "address index %d out of bounds", idx)
	}
	w := int(c.header.AddrOffSize)
	off := idx * w
	var addr uint64
	for i := 0; i < w; i++ {
		addr |= uint64(c.addrTab[off+i]) << (8 * i)
	}
	return addr + c.header.BaseAddress, nil
}

// AddrInfo returns the AddressInfo for address-table entry idx.
func (c *Context) AddrInfo(idx int) (AddressInfo, error) {
	if idx < 0 || idx >= c.NumAddresses() {
		return AddressInfo{}, symerr.Wrap(symerr.InvalidInput, "address index %d out of bounds", idx)
	}
	off := idx * 4
	adOff := int(le32(c.addrDataOffTab[off:]))
	if adOff+8 > len(c.raw) {
		return AddressInfo{}, symerr.Wrap(symerr.InvalidData, "address-data offset %d out of bounds", adOff)
	}
	size := le32(c.raw[adOff:])
	name := le32(c.raw[adOff+4:])
	return AddressInfo{Size: size, Name: name, Data: c.raw[adOff+8:]}, nil
}

// GetStr returns the C-string at offset off in the string table.
func (c *Context) GetStr(off int) (string, error) {
	if off < 0 || off >= len(c.strTab) {
		return "", symerr.Wrap(symerr.InvalidInput, "string offset %d out of bounds", off)
	}
	if c.strTab[off] == 0 {
		return "", nil
	}
	end := off
	for end < len(c.strTab) && c.strTab[end] != 0 {
		end++
	}
	if end >= len(c.strTab) {
		return "", symerr.Wrap(symerr.InvalidData, "unterminated string at offset %d", off)
	}
	return string(c.strTab[off:end]), nil
}

// FileInfo returns the (directory, filename) string-table offset pair for
// file-table entry idx.
func (c *Context) FileInfo(idx int) (dirOff, fileOff uint32, ok bool) {
	off := idx * 8
	if idx < 0 || off+8 > len(c.fileTab) {
		return 0, 0, false
	}
	return le32(c.fileTab[off:]), le32(c.fileTab[off+4:]), true
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FindAddress returns the greatest index i with AddrAt(i) <= addr. It
// reports false if the table is empty or addr is less than every entry.
func FindAddress(ctx *Context, addr uint64) (int, bool) {
	n := ctx.NumAddresses()
	if n == 0 {
		return 0, false
	}
	first, err := ctx.AddrAt(0)
	if err != nil {
		return 0, false
	}
	if addr < first {
		return 0, false
	}

	idx := sort.Search(n, func(i int) bool {
		a, _ := ctx.AddrAt(i)
		return a > addr
	}) - 1
	return idx, true
}

// ParseAddressData decodes the (typ, length, payload) record stream found
// in an AddressInfo's Data field, stopping at EndOfList or payload end.
func ParseAddressData(data []byte) ([]AddressData, error) {
	var out []AddressData
	off := 0
	for off < len(data) {
		if off+8 > len(data) {
			return nil, symerr.Wrap(symerr.InvalidData, "truncated address-data record header")
		}
		typ := le32(data[off:])
		length := le32(data[off+4:])
		off += 8
		end := off + int(length)
		if end > len(data) {
			return nil, symerr.Wrap(symerr.InvalidData, "truncated address-data record payload")
		}
		out = append(out, AddressData{Typ: typ, Length: length, Payload: data[off:end]})
		off = end
		if typ == InfoTypeEndOfList {
			break
		}
	}
	return out, nil
}
