// Package filecache is a lookup cache for data associated with a file,
// keyed by path plus file-identity metadata (device, inode, size, mtime).
// It transparently detects that a file's contents have changed and hands
// out a fresh entry when they have; stale entries are never evicted, they
// simply become unreachable for that path.
package filecache

import (
	"os"
	"sync"
	"syscall"

	"github.com/symblaze/symblaze/internal/symerr"
)

// FileMeta is the file-identity portion of a cache key.
type FileMeta struct {
	Device    uint64
	Inode     uint64
	Size      int64
	MtimeSec  int64
	MtimeNsec int64
}

func statMeta(info os.FileInfo) FileMeta {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return FileMeta{Size: info.Size(), MtimeSec: info.ModTime().Unix(), MtimeNsec: int64(info.ModTime().Nanosecond())}
	}
	return FileMeta{
		Device:    uint64(st.Dev),    //nolint:unconvert // platform-dependent underlying type.
		Inode:     st.Ino,
		Size:      info.Size(),
		MtimeSec:  st.Mtim.Sec,
		MtimeNsec: st.Mtim.Nsec,
	}
}

type key struct {
	path string
	meta FileMeta
}

// Entry holds the open file for a cache slot plus a single-assignment
// value. The value is set at most once via GetOrInit; subsequent calls
// return the value (or error) from the first call, whatever the init
// function argument was.
type Entry[T any] struct {
	File *os.File

	once sync.Once
	val  T
	err  error
}

// GetOrInit runs init at most once for this entry's lifetime and caches
// its result.
func (e *Entry[T]) GetOrInit(init func(*os.File) (T, error)) (T, error) {
	e.once.Do(func() {
		e.val, e.err = init(e.File)
	})
	return e.val, e.err
}

// Cache is a file-identity-keyed lookup cache. It is safe for concurrent
// use; individual Entry values are single-assignment, so holding a borrow
// to one remains valid for the cache's lifetime.
type Cache[T any] struct {
	mu    sync.Mutex
	slots map[key]*Entry[T]
}

// New returns an empty Cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{slots: map[key]*Entry[T]{}}
}

// Entry opens path, stats it, and returns the cache slot for its current
// identity. A distinct mtime (or size, device, inode) yields a new slot;
// the previous slot for that path, if any, is left untouched but becomes
// unreachable through this path.
func (c *Cache[T]) Entry(path string) (*Entry[T], error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-supplied, like os.Open itself.
	if err != nil {
		return nil, symerr.Wrap(symerr.IO, "open %s: %v", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, symerr.Wrap(symerr.IO, "stat %s: %v", path, err)
	}

	k := key{path: path, meta: statMeta(info)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.slots[k]; ok {
		_ = f.Close()
		return e, nil
	}

	e := &Entry[T]{File: f}
	c.slots[k] = e
	return e, nil
}

// Len reports the number of distinct (path, identity) slots held, mostly
// useful for tests.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
