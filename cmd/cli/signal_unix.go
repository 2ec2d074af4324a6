//go:build unix

package cli

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// notifyReloadSigCh relays SIGHUP, a full reload, and SIGUSR1, a rewrite of the resolver config.
func notifyReloadSigCh(ch chan os.Signal) {
	signal.Notify(ch, unix.SIGHUP, unix.SIGUSR1)
}

func stopReloadSigCh(ch chan os.Signal) {
	signal.Stop(ch)
}

func isRewriteSignal(sig os.Signal) bool {
	return sig == unix.SIGUSR1
}
