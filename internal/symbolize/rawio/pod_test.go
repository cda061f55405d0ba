package rawio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPOD struct {
	A uint32
	B uint16
	C uint16
}

func TestPODRef(t *testing.T) {
	data := []byte{
		0x01, 0x00, 0x00, 0x00, // A = 1
		0x02, 0x00, // B = 2
		0x03, 0x00, // C = 3
	}
	c := NewCursor(data)
	v, err := PODRef[testPOD](c)
	require.NoError(t, err)
	assert.Equal(t, testPOD{A: 1, B: 2, C: 3}, v)
	assert.Equal(t, 8, c.Offset())
}

func TestPODRefTruncated(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	_, err := PODRef[testPOD](c)
	require.Error(t, err)
	assert.Equal(t, 0, c.Offset())
}

func TestPODSlice(t *testing.T) {
	data := make([]byte, 16)
	data[0] = 1
	data[8] = 2
	c := NewCursor(data)
	vs, err := PODSlice[testPOD](c, 2)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, uint32(1), vs[0].A)
	assert.Equal(t, uint32(2), vs[1].A)
}
