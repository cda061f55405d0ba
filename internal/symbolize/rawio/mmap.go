//go:build linux

package rawio

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/symblaze/symblaze/internal/symerr"
)

// Mmap is a read-only memory mapping of an entire file. Slices returned by
// Bytes remain valid for the lifetime of the Mmap; Close invalidates them.
type Mmap struct {
	data []byte
	once sync.Once
	err  error
}

// MapFile memory-maps file in its entirety, read-only, private.
func MapFile(file *os.File) (*Mmap, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, symerr.Wrap(symerr.IO, "stat failed: %v", err)
	}
	size := info.Size()
	if size == 0 {
		// unix.Mmap rejects zero-length mappings; represent as an empty
		// region rather than failing callers that open legitimately empty
		// files.
		return &Mmap{data: []byte{}}, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, symerr.Wrap(symerr.IO, "mmap failed: %v", err)
	}
	return &Mmap{data: data}, nil
}

// Bytes returns the mapped region. The slice is read-only by convention;
// writing through it is undefined behavior.
func (m *Mmap) Bytes() []byte { return m.data }

// Close unmaps the region. It is idempotent and safe to call more than
// once.
func (m *Mmap) Close() error {
	m.once.Do(func() {
		if len(m.data) == 0 {
			return
		}
		if err := unix.Munmap(m.data); err != nil {
			m.err = symerr.Wrap(symerr.IO, "munmap failed: %v", err)
		}
	})
	return m.err
}
