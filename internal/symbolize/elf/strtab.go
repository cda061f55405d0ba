package elf

import "bytes"

// extractCString reads a NUL-terminated string from data starting at
// offset. It reports false if offset is out of bounds or the string is
// unterminated.
func extractCString(data []byte, offset int) (string, bool) {
	if offset < 0 || offset > len(data) {
		return "", false
	}
	rest := data[offset:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", false
	}
	return string(rest[:end]), true
}
