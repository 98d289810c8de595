package kernel

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the package-wide diagnostic sink. It is deliberately not
// consulted anywhere on a syscall's hot path — only at boot and at halt —
// so logging can never become an implicit scheduling dependency. Swappable
// so an embedder can point it at a buffer or its own sink.
var Logger zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// halt is invoked for programming errors: conditions the type system can't
// rule out (a task finishing while it still holds a mutex, a failed install
// of the static regions at Boot) but that a correct caller never triggers. It logs the reason at Error level (Fatal would
// os.Exit before the panic below ever unwound) and then panics, since
// there is no sensible Status for "the kernel's own invariants broke."
func halt(reason string, fields map[string]any) {
	ev := Logger.Error()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(reason)
	panic(reason)
}
