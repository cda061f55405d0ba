package rawio

import (
	"bytes"
	"encoding/binary"

	"github.com/symblaze/symblaze/internal/symerr"
)

// PODRef decodes the next binary.Size(T) bytes as T using little-endian,
// fixed-layout binary encoding, advancing the cursor. T must be a struct of
// fixed-width fields (no pointers, no padding-sensitive types) — the same
// contract as encoding/binary.Read.
func PODRef[T any](c *Cursor) (T, error) {
	var v T
	size := binary.Size(v)
	if size < 0 {
		return v, symerr.Wrap(symerr.InvalidData, "type is not a fixed-size POD")
	}
	b, err := c.Bytes(size)
	if err != nil {
		return v, err
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &v); err != nil {
		return v, symerr.Wrap(symerr.InvalidData, "failed to decode POD: %v", err)
	}
	return v, nil
}

// PODSlice decodes count consecutive T values, advancing the cursor past
// all of them.
func PODSlice[T any](c *Cursor, count int) ([]T, error) {
	out := make([]T, 0, count)
	for i := 0; i < count; i++ {
		v, err := PODRef[T](c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
