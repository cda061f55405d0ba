package gsym

import (
	"github.com/symblaze/symblaze/internal/symbolize/rawio"
	"github.com/symblaze/symblaze/internal/symerr"
)

// Line-table opcodes, per the LLVM GSYM line-table encoding: standard
// opcodes below firstSpecialOpcode, special opcodes at or above it encode
// a simultaneous (address-delta, line-delta) pair.
const (
	opEndSequence      = 0x00
	opSetFile          = 0x01
	opAdvancePC        = 0x02
	opAdvanceLine      = 0x03
	firstSpecialOpcode = 0x04
)

// LineTableHeader is the fixed prefix of a LineTableInfo payload.
type LineTableHeader struct {
	MinDelta  int64
	MaxDelta  int64
	FirstLine uint32
}

// LineEntry is one row emitted by the line-table VM.
type LineEntry struct {
	Addr uint64
	File int
	Line int
}

// ParseLineTableHeader reads the three LEB128-encoded header fields from a
// LineTableInfo payload and returns the remaining opcode stream.
func ParseLineTableHeader(payload []byte) (LineTableHeader, []byte, error) {
	c := rawio.NewCursor(payload)
	minDelta, err := c.Sleb128()
	if err != nil {
		return LineTableHeader{}, nil, symerr.Wrap(symerr.InvalidData, "failed to read min_delta: %v", err)
	}
	maxDelta, err := c.Sleb128()
	if err != nil {
		return LineTableHeader{}, nil, symerr.Wrap(symerr.InvalidData, "failed to read max_delta: %v", err)
	}
	firstLine, err := c.Uleb128()
	if err != nil {
		return LineTableHeader{}, nil, symerr.Wrap(symerr.InvalidData, "failed to read first_line: %v", err)
	}
	rest, err := c.Bytes(c.Remaining())
	if err != nil {
		return LineTableHeader{}, nil, err
	}
	return LineTableHeader{MinDelta: minDelta, MaxDelta: maxDelta, FirstLine: uint32(firstLine)}, rest, nil
}

// RunLineTableVM interprets the opcode stream following a LineTableHeader,
// maintaining (addr_cursor, file_idx, line) registers and emitting one
// LineEntry per advance. The VM is purely functional over its input and
// stops at EndSequence or when the opcode stream is exhausted.
func RunLineTableVM(startAddr uint64, header LineTableHeader, ops []byte) ([]LineEntry, error) {
	c := rawio.NewCursor(ops)
	addr := startAddr
	file := 0
	line := int(header.FirstLine)

	lineRange := header.MaxDelta - header.MinDelta + 1
	if lineRange <= 0 {
		return nil, symerr.Wrap(symerr.InvalidData, "invalid line-table delta range [%d, %d]", header.MinDelta, header.MaxDelta)
	}

	var entries []LineEntry
	for c.Remaining() > 0 {
		opcode, err := c.Uint8()
		if err != nil {
			return nil, err
		}
		switch {
		case opcode == opEndSequence:
			return entries, nil
		case opcode == opSetFile:
			idx, err := c.Uleb128()
			if err != nil {
				return nil, symerr.Wrap(symerr.InvalidData, "failed to read set_file operand: %v", err)
			}
			file = int(idx)
		case opcode == opAdvancePC:
			delta, err := c.Uleb128()
			if err != nil {
				return nil, symerr.Wrap(symerr.InvalidData, "failed to read advance_pc operand: %v", err)
			}
			addr += delta
			entries = append(entries, LineEntry{Addr: addr, File: file, Line: line})
		case opcode == opAdvanceLine:
			delta, err := c.Sleb128()
			if err != nil {
				return nil, symerr.Wrap(symerr.InvalidData, "failed to read advance_line operand: %v", err)
			}
			line += int(delta)
		default:
			adjusted := int64(opcode) - firstSpecialOpcode
			addrDelta := adjusted / lineRange
			lineDelta := header.MinDelta + adjusted%lineRange
			addr += uint64(addrDelta)
			line += int(lineDelta)
			entries = append(entries, LineEntry{Addr: addr, File: file, Line: line})
		}
	}
	return entries, nil
}
