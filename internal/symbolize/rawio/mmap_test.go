//go:build linux

package rawio

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mmap-*")
	require.NoError(t, err)
	defer f.Close()

	want := []byte("Daniel was here. Briefly.\x00")
	_, err = f.Write(want)
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	m, err := MapFile(f)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, want, m.Bytes())
	assert.NoError(t, m.Close(), "Close must be idempotent")
}

func TestMapFileEmpty(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mmap-empty-*")
	require.NoError(t, err)
	defer f.Close()

	m, err := MapFile(f)
	require.NoError(t, err)
	assert.Empty(t, m.Bytes())
	require.NoError(t, m.Close())
}
