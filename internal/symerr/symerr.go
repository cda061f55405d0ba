// Package symerr provides the error-kind taxonomy shared by every
// symbolize package, plus small cleanup helpers used in defer statements.
package symerr

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Sentinel kinds. Callers classify an error with errors.Is(err, symerr.NotFound)
// and friends; Wrap attaches a message while preserving the kind.
var (
	// InvalidData marks malformed input: bad magic, inconsistent sizes,
	// out-of-range offsets.
	InvalidData = errors.New("invalid data")
	// InvalidInput marks bad caller arguments: unsorted addresses,
	// unsupported symbol type, out-of-range index.
	InvalidInput = errors.New("invalid input")
	// NotFound marks a missing section or symbol.
	NotFound = errors.New("not found")
	// Unsupported marks a feature not implemented for a given backend.
	Unsupported = errors.New("unsupported")
	// IO marks an open/read/stat/mmap failure.
	IO = errors.New("io")
	// UnexpectedEOF marks a premature end of a required stream.
	UnexpectedEOF = errors.New("unexpected eof")
)

// Wrap produces an error that formats as msg but still satisfies
// errors.Is(err, kind).
func Wrap(kind error, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return fmt.Errorf("%s: %w", msg, kind)
}

// DeferClose closes closer and logs (rather than swallows) a non-nil
// error. Use in defer statements so Close failures are never silent.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// Must panics if err is non-nil. Use only in initialization paths where
// failure should halt the program (e.g. cmd/ wiring).
func Must(err error, msg string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}
