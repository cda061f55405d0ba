// Package symbolizer is the public facade composing source configuration
// into a resolve.Map and symbolizing batches of addresses against it.
package symbolizer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/symblaze/symblaze/internal/symbolize/elf"
	"github.com/symblaze/symblaze/internal/symbolize/normalize"
	"github.com/symblaze/symblaze/internal/symbolize/resolve"
	"github.com/symblaze/symblaze/internal/symerr"
)

// Source configures one resolver in the underlying resolve.Map. It is a
// type alias for resolve.Source so callers never need to import
// internal/symbolize/resolve directly.
type Source = resolve.Source

// Re-exported source constructors, for callers that want the concrete
// variant names at the symbolizer package boundary.
type (
	ElfSource     = resolve.ElfSource
	KernelSource  = resolve.KernelSource
	ProcessSource = resolve.ProcessSource
	GsymSource    = resolve.GsymSource
)

// LookupOpts controls FindAddressByName lookups; see elf.FindAddrOpts.
type LookupOpts = elf.FindAddrOpts

// Options controls how Symbolize resolves an address beyond the bare
// symbol name.
type Options struct {
	// LineNumberInfo requests file:line information from backends that
	// carry it (GSYM). Enabled by default.
	LineNumberInfo bool
	// DebugInfoSymbols requests DWARF-derived symbol information. This
	// module carries no DWARF backend, so this option is accepted for
	// API compatibility but has no effect.
	DebugInfoSymbols bool
}

// DefaultOptions returns the default symbolization options.
func DefaultOptions() Options {
	return Options{LineNumberInfo: true}
}

// Config configures a Symbolizer.
type Config struct {
	Sources []Source
	Options Options
	Logger  zerolog.Logger
}

// SymbolizedResult is one resolved symbol for an input address. A given
// address may resolve to zero results (unmapped / unknown) or, once
// inlining is supported, more than one.
type SymbolizedResult struct {
	Symbol       string
	StartAddress uint64
	Path         string
	Line         int
	Column       int
}

// Symbolizer resolves batches of runtime addresses to symbol information
// across the resolvers built from its Config's sources.
type Symbolizer struct {
	resolverMap *resolve.Map
	opts        Options
	logger      zerolog.Logger
}

// New builds a Symbolizer from cfg, constructing one resolver per source.
func New(cfg Config) (*Symbolizer, error) {
	logger := cfg.Logger.With().Str("component", "symbolizer").Logger()

	m, err := resolve.BuildMap(cfg.Sources, logger)
	if err != nil {
		return nil, err
	}

	opts := cfg.Options
	if opts == (Options{}) {
		opts = DefaultOptions()
	}

	logger.Debug().Int("resolvers", len(m.Resolvers())).Msg("symbolizer initialized")

	return &Symbolizer{resolverMap: m, opts: opts, logger: logger}, nil
}

// Symbolize resolves each address in addrs against the unique resolver
// whose range contains it, returning one slice of results per input
// address, in input order. An address with no covering resolver, or for
// which the resolver finds no symbol, yields a nil slice rather than an
// error — failure to resolve one address never aborts the batch.
func (s *Symbolizer) Symbolize(ctx context.Context, addrs []uint64) ([][]SymbolizedResult, error) {
	requestID := uuid.New()
	log := s.logger.With().Str("request_id", requestID.String()).Logger()
	log.Debug().Int("count", len(addrs)).Msg("symbolize request")

	out := make([][]SymbolizedResult, len(addrs))
	for i, addr := range addrs {
		select {
		case <-ctx.Done():
			return nil, symerr.Wrap(symerr.InvalidInput, "symbolize canceled: %v", ctx.Err())
		default:
		}

		r, err := s.resolverMap.Find(addr)
		if err != nil {
			log.Debug().Uint64("addr", addr).Msg("no resolver covers address")
			continue
		}

		name, start, err := r.FindSymbol(addr)
		if err != nil {
			log.Debug().Uint64("addr", addr).Str("obj", r.Path()).Err(err).Msg("symbol lookup failed")
			continue
		}

		result := SymbolizedResult{Symbol: name, StartAddress: start, Path: r.Path()}

		if s.opts.LineNumberInfo {
			if li, err := r.FindLineInfo(addr); err == nil {
				result.Line = li.Line
				result.Column = li.Column
				if li.File != "" {
					result.Path = li.File
				}
			}
		}

		out[i] = []SymbolizedResult{result}
	}

	return out, nil
}

// FindAddressByName resolves name to zero or more symbol locations across
// every resolver in the map.
func (s *Symbolizer) FindAddressByName(name string, opts LookupOpts) ([]elf.SymbolInfo, error) {
	var all []elf.SymbolInfo
	for _, r := range s.resolverMap.Resolvers() {
		found, err := r.FindAddressByName(name, opts)
		if err != nil {
			if errors.Is(err, symerr.Unsupported) {
				continue
			}
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

// NormalizeUserAddrs delegates to the normalize package, translating
// runtime addresses captured in process pid into file-local addresses
// plus per-binary metadata suitable for later, possibly offline,
// symbolization.
func (s *Symbolizer) NormalizeUserAddrs(addrs []uint64, pid int) (*normalize.NormalizedAddrs, error) {
	return normalize.UserAddrs(addrs, pid, s.logger)
}
