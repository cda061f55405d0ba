package symerr

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestWrapPreservesKind(t *testing.T) {
	err := Wrap(NotFound, "section %q not found", ".symtab")
	require.ErrorIs(t, err, NotFound)
	assert.NotErrorIs(t, err, InvalidData)
	assert.Contains(t, err.Error(), ".symtab")
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     io.Closer
		wantLogged bool
	}{
		{name: "nil closer", closer: nil, wantLogged: false},
		{name: "successful close", closer: &mockCloser{}, wantLogged: false},
		{name: "close with error", closer: &mockCloser{closeErr: errors.New("close failed")}, wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			DeferClose(logger, tt.closer, "test close")

			if tt.closer != nil {
				mc := tt.closer.(*mockCloser)
				assert.True(t, mc.closed)
			}
			assert.Equal(t, tt.wantLogged, buf.Len() > 0)
		})
	}
}

func TestMust(t *testing.T) {
	require.NotPanics(t, func() { Must(nil, "init") })
	require.Panics(t, func() { Must(errors.New("boom"), "init") })
}
