//go:build logless
// +build logless

package logger

import (
	"io"

	"github.com/rs/zerolog"
)

var Log = zerolog.Nop()

// New returns a disabled logger regardless of w.
func New(w io.Writer) zerolog.Logger {
	return zerolog.Nop()
}
