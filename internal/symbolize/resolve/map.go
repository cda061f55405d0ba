package resolve

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symbolize/filecache"
	"github.com/symblaze/symblaze/internal/symbolize/gsym"
	"github.com/symblaze/symblaze/internal/symbolize/kernel"
	"github.com/symblaze/symblaze/internal/symbolize/procmaps"
	"github.com/symblaze/symblaze/internal/symerr"
)

// DefaultKernelRange is the canonical higher half of the x86-64 virtual
// address space, used for KernelSource entries that do not specify one.
var DefaultKernelRange = AddrRange{Start: 0xffff800000000000, End: 0xffffffffffffffff}

// Map dispatches an input address to the unique Resolver whose range
// contains it.
type Map struct {
	resolvers []Resolver
}

// Find returns the resolver covering addr, or symerr.NotFound if none
// does.
func (m *Map) Find(addr uint64) (Resolver, error) {
	for _, r := range m.resolvers {
		if r.Range().Contains(addr) {
			return r, nil
		}
	}
	return nil, symerr.Wrap(symerr.NotFound, "no resolver covers address 0x%x", addr)
}

// Resolvers returns all resolvers currently in the map, for diagnostics.
func (m *Map) Resolvers() []Resolver {
	out := make([]Resolver, len(m.resolvers))
	copy(out, m.resolvers)
	return out
}

// BuildMap constructs a resolver Map from a source configuration. logger
// receives the Warn entries emitted by the underlying elf.Open/BuildID and
// kernel.ReadKallsyms calls; its zero value is a valid no-op logger.
func BuildMap(sources []Source, logger zerolog.Logger) (*Map, error) {
	m := &Map{}
	for _, src := range sources {
		switch s := src.(type) {
		case ElfSource:
			r, err := buildElfResolver(s, logger)
			if err != nil {
				return nil, err
			}
			m.resolvers = append(m.resolvers, r)

		case GsymSource:
			r, err := buildGsymResolver(s)
			if err != nil {
				return nil, err
			}
			m.resolvers = append(m.resolvers, r)

		case KernelSource:
			r, err := buildKernelResolver(s, logger)
			if err != nil {
				return nil, err
			}
			m.resolvers = append(m.resolvers, r)

		case ProcessSource:
			rs, err := buildProcessResolvers(s, logger)
			if err != nil {
				return nil, err
			}
			m.resolvers = append(m.resolvers, rs...)

		default:
			return nil, symerr.Wrap(symerr.InvalidInput, "unknown source type %T", src)
		}
	}
	return m, nil
}

func buildElfResolver(s ElfSource, logger zerolog.Logger) (*ElfResolver, error) {
	parser, err := elf.Open(s.Path, logger)
	if err != nil {
		return nil, err
	}
	return NewElfResolver(parser, s.Base)
}

func buildGsymResolver(s GsymSource) (*GsymResolver, error) {
	data := s.Data
	path := s.Path
	if data == nil {
		raw, err := os.ReadFile(s.Path) //nolint:gosec // path is caller-supplied configuration.
		if err != nil {
			return nil, symerr.Wrap(symerr.IO, "open %s: %v", s.Path, err)
		}
		data = raw
	} else {
		path = "<in-memory>"
	}
	ctx, err := gsym.ParseHeader(data)
	if err != nil {
		return nil, err
	}
	return NewGsymResolver(path, ctx, s.Base), nil
}

func buildKernelResolver(s KernelSource, logger zerolog.Logger) (*KernelResolver, error) {
	symbols, _, err := kernel.ReadKallsyms(s.KallsymsPath, logger)
	if err != nil {
		return nil, err
	}

	var image *elf.Parser
	if s.ImagePath != "" {
		image, err = elf.Open(s.ImagePath, logger)
		if err != nil {
			return nil, err
		}
	}

	rng := s.Range
	if rng == (AddrRange{}) {
		rng = DefaultKernelRange
	}
	return NewKernelResolver(kernel.NewResolver(symbols, image), rng), nil
}

// buildProcessResolvers builds one resolver per relevant proc-maps entry.
// Repeated mappings of the same file (as happens for separate r-x segments
// of one shared object) reuse a single parsed elf.Parser via parserCache,
// keyed by the file's identity rather than just its path.
func buildProcessResolvers(s ProcessSource, logger zerolog.Logger) ([]Resolver, error) {
	entries, err := procmaps.Open(s.PID)
	if err != nil {
		return nil, err
	}

	parserCache := filecache.New[*elf.Parser]()
	var out []Resolver
	for _, e := range entries {
		if !e.Relevant() {
			continue
		}
		slot, err := parserCache.Entry(e.Path)
		if err != nil {
			return nil, err
		}
		parser, err := slot.GetOrInit(func(f *os.File) (*elf.Parser, error) {
			return elf.OpenFile(f, logger)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, NewProcessEntryResolver(parser, e))
	}
	return out, nil
}
