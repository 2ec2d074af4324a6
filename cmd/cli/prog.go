package cli

import (
	"context"
	"os"
	"sync"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/kardianos/service"
	"golang.org/x/sync/errgroup"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/dnsmanager"
)

var svcConfig = &service.Config{
	Name:        "dnsmgr",
	DisplayName: "DNS Configuration Manager",
	Description: "Aggregates DNS configuration and keeps the system resolver in sync",
	Option:      service.KeyValue{},
}

type prog struct {
	mu       sync.Mutex
	cfg      *dnsmgr.Config
	dm       *dnsmanager.Manager
	cs       *controlServer
	registry configRegistry

	stopCh     chan struct{}
	doneCh     chan struct{}
	reloadCh   chan struct{}
	stopOnce   sync.Once
	configFile string
}

func newProg(c *dnsmgr.Config, configFile string) *prog {
	return &prog{
		cfg:        c,
		configFile: configFile,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		reloadCh:   make(chan struct{}, 1),
	}
}

func (p *prog) Start(s service.Service) error {
	go p.run()
	return nil
}

// run runs the dns manager and its control surfaces until the prog is stopped.
func (p *prog) run() {
	defer close(p.doneCh)
	logger := mainLog.Load()

	p.mu.Lock()
	p.dm = dnsmanager.New(p.cfg)
	p.mu.Unlock()
	if hostname, err := os.Hostname(); err == nil {
		p.dm.SetInitialHostname(hostname)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	cs, err := newControlServer(p.cfg.Service.ControlSocket)
	if err != nil {
		logger.Warn().Err(err).Msg("could not create control server")
	} else {
		registerControlServerHandler(cs, p.dm, &p.registry, p.requestReload)
		if err := cs.start(); err != nil {
			logger.Warn().Err(err).Msgf("could not start control server on %s", p.cfg.Service.ControlSocket)
		} else {
			p.cs = cs
			logger.Info().Msgf("control server listening on %s", p.cfg.Service.ControlSocket)
		}
	}

	g.Go(func() error {
		p.dm.Run(gctx)
		return nil
	})
	g.Go(func() error {
		p.runMetricsServer(gctx)
		return nil
	})
	g.Go(func() error {
		p.handleReloads(gctx)
		return nil
	})
	if p.cfg.DNS.WatchResolvConf {
		g.Go(func() error {
			p.watchResolvConf(gctx, p.cfg.DNS.Paths().ResolvConf)
			return nil
		})
	}

	sdNotify(sddaemon.SdNotifyReady)
	logger.Info().Msg("dnsmgr started")

	<-p.stopCh
	sdNotify(sddaemon.SdNotifyStopping)
	if p.cs != nil {
		if err := p.cs.stop(); err != nil {
			logger.Warn().Err(err).Msg("could not stop control server")
		}
	}
	cancel()
	_ = g.Wait()
	p.dm.Close()
}

func (p *prog) Stop(s service.Service) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
	mainLog.Load().Info().Msg("Service stopped")
	return nil
}

// requestReload asks the prog to reload its config file.
func (p *prog) requestReload() {
	select {
	case p.reloadCh <- struct{}{}:
	default:
	}
}

// handleReloads applies config reloads requested by signals or the control server.
func (p *prog) handleReloads(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	notifyReloadSigCh(sigCh)
	defer stopReloadSigCh(sigCh)

	logger := mainLog.Load()
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if isRewriteSignal(sig) {
				logger.Info().Msgf("got signal: %s, rewriting resolver config", sig)
				p.dm.Reload(nil, dnsmanager.ChangeSIGUSR1)
				continue
			}
			logger.Info().Msgf("got signal: %s, reloading...", sig)
			p.reload()
		case <-p.reloadCh:
			logger.Info().Msg("reloading...")
			p.reload()
		}
	}
}

// reload reads the config file again and hands the changes to the dns manager.
func (p *prog) reload() {
	sdNotify(sddaemon.SdNotifyReloading)
	defer sdNotify(sddaemon.SdNotifyReady)

	logger := mainLog.Load()
	newCfg, err := loadConfigFile(p.configFile)
	if err != nil {
		logger.Err(err).Msg("could not reload config")
		return
	}

	p.mu.Lock()
	oldCfg := p.cfg
	p.cfg = newCfg
	p.mu.Unlock()

	flags := dnsmanager.Changes(oldCfg, newCfg) | dnsmanager.ChangeSIGHUP
	p.dm.Reload(newCfg, flags)
	logger.Info().Msgf("reloading config successfully (%s)", flags)
}

func sdNotify(state string) {
	if _, err := sddaemon.SdNotify(false, state); err != nil {
		mainLog.Load().Debug().Err(err).Msgf("could not notify systemd: %s", state)
	}
}
