// Package kernel resolves addresses against the running Linux kernel: a
// kallsyms symbol list, optionally combined with a kernel image ELF
// resolver for cases where kallsyms alone lacks the information needed
// (e.g. symbol size).
package kernel

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/symblaze/symblaze/internal/symerr"
)

// DefaultKallsymsPath is the standard location of the kernel symbol list.
const DefaultKallsymsPath = "/proc/kallsyms"

// Symbol is one parsed /proc/kallsyms entry.
type Symbol struct {
	Address uint64
	Type    byte
	Name    string
	Module  string // empty for the core kernel, module name for loadable modules
}

// ParseKallsyms parses the kallsyms textual format from r. It also
// reports the number of entries whose address was reported as zero,
// which on a running kernel indicates insufficient privilege
// (kptr_restrict) rather than malformed input.
func ParseKallsyms(r io.Reader) ([]Symbol, int, error) {
	var symbols []Symbol
	zeroAddresses := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}

		var addr uint64
		if _, err := fmt.Sscanf(parts[0], "%x", &addr); err != nil {
			continue
		}
		if addr == 0 {
			zeroAddresses++
			continue
		}

		symType := parts[1][0]
		symName := parts[2]

		var module string
		if len(parts) > 3 && strings.HasPrefix(parts[3], "[") && strings.HasSuffix(parts[3], "]") {
			module = strings.Trim(parts[3], "[]")
		}

		symbols = append(symbols, Symbol{Address: addr, Type: symType, Name: symName, Module: module})
	}
	if err := scanner.Err(); err != nil {
		return nil, zeroAddresses, symerr.Wrap(symerr.IO, "failed to read kallsyms: %v", err)
	}

	return symbols, zeroAddresses, nil
}

// ReadKallsyms opens path (DefaultKallsymsPath if empty) and parses it.
// logger receives a Warn entry when some, but not all, addresses were
// reported as zero (kptr_restrict masking loadable-module symbols while
// leaving the core kernel visible, or vice versa); its zero value is a
// valid no-op logger.
func ReadKallsyms(path string, logger zerolog.Logger) ([]Symbol, int, error) {
	if path == "" {
		path = DefaultKallsymsPath
	}
	f, err := os.Open(path) //nolint:gosec // fixed, caller-chosen path.
	if err != nil {
		return nil, 0, symerr.Wrap(symerr.IO, "open %s: %v (requires root or CAP_SYSLOG)", path, err)
	}
	defer func() { _ = f.Close() }()

	symbols, zero, err := ParseKallsyms(f)
	if err != nil {
		return nil, zero, err
	}
	if len(symbols) == 0 && zero > 0 {
		return nil, zero, symerr.Wrap(symerr.InvalidData, "all kallsyms addresses are 0 (insufficient permissions)")
	}
	if len(symbols) == 0 {
		return nil, zero, symerr.Wrap(symerr.NotFound, "no kernel symbols found in %s", path)
	}
	if zero > 0 {
		logger.Warn().Int("zero_addresses", zero).Str("path", path).
			Msg("some kallsyms addresses reported as zero; kptr_restrict may be masking them")
	}
	return symbols, zero, nil
}

// sortSymbols returns a stable copy of symbols sorted by address.
func sortSymbols(symbols []Symbol) []Symbol {
	out := make([]Symbol, len(symbols))
	copy(out, symbols)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// findSymbolIndex returns the index of the symbol with the greatest
// address <= addr, or false if addr precedes every symbol.
func findSymbolIndex(symbols []Symbol, addr uint64) (int, bool) {
	idx := sort.Search(len(symbols), func(i int) bool { return symbols[i].Address > addr })
	if idx == 0 {
		return 0, false
	}
	return idx - 1, true
}

// displayName formats a symbol for display, appending its module name when set.
func (s Symbol) displayName() string {
	if s.Module != "" {
		return fmt.Sprintf("%s [%s]", s.Name, s.Module)
	}
	return s.Name
}
