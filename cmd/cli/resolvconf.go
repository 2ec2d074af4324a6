package cli

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Control-D-Inc/dnsmgr/internal/dnsmanager"
)

// watchResolvConf watches attribute changes and removal of the resolv.conf file,
// re-selecting the resolv.conf mode when they happen. Immutability is toggled
// with an attribute change.
func (p *prog) watchResolvConf(ctx context.Context, resolvConfPath string) {
	mainLog.Load().Debug().Msgf("start watching %s file", resolvConfPath)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		mainLog.Load().Warn().Err(err).Msgf("could not create watcher for %s", resolvConfPath)
		return
	}
	defer watcher.Close()

	// We watch the parent directory instead of resolv.conf directly,
	// see: https://github.com/fsnotify/fsnotify#watching-a-file-doesnt-work-well
	watchDir := filepath.Dir(resolvConfPath)
	if err := watcher.Add(watchDir); err != nil {
		mainLog.Load().Warn().Err(err).Msgf("could not add %s to watcher list", watchDir)
		return
	}

	for {
		select {
		case <-ctx.Done():
			mainLog.Load().Debug().Msgf("stopping watcher for %s", resolvConfPath)
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != resolvConfPath {
				continue
			}
			if event.Has(fsnotify.Chmod) || event.Has(fsnotify.Remove) {
				mainLog.Load().Debug().Msgf("%s changes detected: %s", resolvConfPath, event.Op)
				p.dm.Reload(nil, dnsmanager.ChangeSIGHUP)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			mainLog.Load().Err(err).Msgf("could not get event for %s", resolvConfPath)
		}
	}
}
