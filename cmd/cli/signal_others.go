//go:build !unix

package cli

import "os"

func notifyReloadSigCh(ch chan os.Signal) {}

func stopReloadSigCh(ch chan os.Signal) {}

func isRewriteSignal(sig os.Signal) bool { return false }
