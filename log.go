package dnsmgr

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

func init() {
	l := zerolog.New(io.Discard)
	Logger.Store(&l)
}

// Logger emits the log record for dns manager operations.
// The daemon replaces it once logging is configured.
var Logger atomic.Pointer[zerolog.Logger]

// ComponentLogger returns a child of Logger tagged with the given component name.
func ComponentLogger(component string) *zerolog.Logger {
	l := Logger.Load().With().Str("component", component).Logger()
	return &l
}

// Log emits the logs for a particular zerolog event.
// The caller name, if not empty, prefixes the message.
func Log(caller string, e *zerolog.Event, format string, v ...any) {
	if caller == "" {
		e.Msgf(format, v...)
		return
	}
	e.MsgFunc(func() string {
		return fmt.Sprintf("[%s] %s", caller, fmt.Sprintf(format, v...))
	})
}
