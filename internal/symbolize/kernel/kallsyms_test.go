package kernel

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKallsyms = `0000000000000000 T fixed_percpu_data
ffffffff81000000 T startup_64
ffffffff81001000 T secondary_startup_64
ffffffff81002000 t verify_cpu
ffffffff81e00000 T tcp_v4_rcv	[tcp_ipv4]
`

func TestParseKallsymsBasic(t *testing.T) {
	symbols, zero, err := ParseKallsyms(strings.NewReader(sampleKallsyms))
	require.NoError(t, err)
	assert.Equal(t, 1, zero, "the zero-address entry must be counted, not returned")
	require.Len(t, symbols, 4)
	assert.Equal(t, "startup_64", symbols[0].Name)
	assert.Equal(t, byte('T'), symbols[0].Type)
}

func TestParseKallsymsModuleSuffix(t *testing.T) {
	symbols, _, err := ParseKallsyms(strings.NewReader(sampleKallsyms))
	require.NoError(t, err)
	var found bool
	for _, s := range symbols {
		if s.Name == "tcp_v4_rcv" {
			found = true
			assert.Equal(t, "tcp_ipv4", s.Module)
		}
	}
	assert.True(t, found)
}

func TestResolverFindSymbol(t *testing.T) {
	symbols, _, err := ParseKallsyms(strings.NewReader(sampleKallsyms))
	require.NoError(t, err)
	r := NewResolver(symbols, nil)

	name, addr, err := r.FindSymbol(0xffffffff81001500)
	require.NoError(t, err)
	assert.Equal(t, "secondary_startup_64", name)
	assert.Equal(t, uint64(0xffffffff81001000), addr)
}

func TestResolverFindSymbolWithModule(t *testing.T) {
	symbols, _, err := ParseKallsyms(strings.NewReader(sampleKallsyms))
	require.NoError(t, err)
	r := NewResolver(symbols, nil)

	name, _, err := r.FindSymbol(0xffffffff81e00010)
	require.NoError(t, err)
	assert.Equal(t, "tcp_v4_rcv [tcp_ipv4]", name)
}

func TestResolverBeforeFirstSymbol(t *testing.T) {
	symbols, _, err := ParseKallsyms(strings.NewReader(sampleKallsyms))
	require.NoError(t, err)
	r := NewResolver(symbols, nil)

	_, _, err = r.FindSymbol(0x10)
	assert.Error(t, err)
}

func TestResolverFindSymbolRace(t *testing.T) {
	symbols, _, err := ParseKallsyms(strings.NewReader(sampleKallsyms))
	require.NoError(t, err)
	r := NewResolver(symbols, nil)

	const (
		numGoroutines = 10
		numIterations = 100
	)

	addresses := []uint64{
		0xffffffff81000000,
		0xffffffff81001500,
		0xffffffff81002100,
		0xffffffff81e00010,
	}

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				for _, addr := range addresses {
					_, _, _ = r.FindSymbol(addr)
				}
			}
		}()
	}
	wg.Wait()
}
