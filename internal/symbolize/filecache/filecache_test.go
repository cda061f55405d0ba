package filecache

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryLookupAssignsOnce(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "filecache-*")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c := New[int]()

	e, err := c.Entry(f.Name())
	require.NoError(t, err)
	v, err := e.GetOrInit(func(*os.File) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	e2, err := c.Entry(f.Name())
	require.NoError(t, err)
	v2, err := e2.GetOrInit(func(*os.File) (int, error) { return 99, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v2, "second init call must not override the first")
	assert.Equal(t, 1, c.Len())
}

func TestEntryOutdatedFileYieldsFreshSlot(t *testing.T) {
	path := t.TempDir() + "/binary"
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	c := New[string]()
	e, err := c.Entry(path)
	require.NoError(t, err)
	_, err = e.GetOrInit(func(*os.File) (string, error) { return "v1-parsed", nil })
	require.NoError(t, err)

	// Ensure the mtime actually advances; some filesystems have 1s
	// resolution for the classic mtime field.
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2-longer"), 0o600))

	e2, err := c.Entry(path)
	require.NoError(t, err)
	v2, err := e2.GetOrInit(func(*os.File) (string, error) { return "v2-parsed", nil })
	require.NoError(t, err)
	assert.Equal(t, "v2-parsed", v2)
	assert.Equal(t, 2, c.Len(), "old slot must persist, unreachable, not evicted")
}

func TestEntryConcurrentLookupAndInitRace(t *testing.T) {
	path := t.TempDir() + "/binary"
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	c := New[int]()
	var initCalls int64

	const (
		numGoroutines = 10
		numIterations = 100
	)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				e, err := c.Entry(path)
				require.NoError(t, err)
				v, err := e.GetOrInit(func(*os.File) (int, error) {
					atomic.AddInt64(&initCalls, 1)
					return 7, nil
				})
				require.NoError(t, err)
				assert.Equal(t, 7, v)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&initCalls), "init must run exactly once across all racing goroutines")
	assert.Equal(t, 1, c.Len())
}
