// Package dnsmanager aggregates the DNS information of all IP configs and
// keeps the system resolver state in sync with it.
package dnsmanager

import (
	"context"
	"crypto/sha1"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"tailscale.com/tstime"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/dns"
	"github.com/Control-D-Inc/dnsmgr/internal/plugin"
)

// localResolver is the nameserver written to resolv.conf when a caching plugin serves DNS.
const localResolver = "127.0.0.1"

// Clock is the source of time of the Manager.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) tstime.TimerController
}

// PluginFactory creates the plugin for a DNS mode. It returns nil, nil if
// the mode does not use a plugin.
type PluginFactory func(mode string, cfg dnsmgr.DNSConfig, logger *zerolog.Logger) (plugin.Plugin, error)

// ConfigChangedEvent is submitted after the resolver config was committed.
type ConfigChangedEvent struct {
	Mode   dns.Mode
	Config dns.OSConfig
}

// Status is a snapshot of the Manager state.
type Status struct {
	Mode        string   `json:"mode"`
	DNSMode     string   `json:"dns_mode"`
	Plugin      string   `json:"plugin,omitempty"`
	Explicit    bool     `json:"explicit"`
	Hostname    string   `json:"hostname,omitempty"`
	Configs     int      `json:"configs"`
	Nameservers []string `json:"nameservers,omitempty"`
	Searches    []string `json:"searches,omitempty"`
	Options     []string `json:"options,omitempty"`
}

type pluginEvent struct {
	plugin plugin.Plugin
	event  plugin.Event
}

// Manager is the DNS manager. All methods are safe for concurrent use, and
// at most one resolver config commit runs at a time.
type Manager struct {
	logger      *zerolog.Logger
	clock       Clock
	newPlugin   PluginFactory
	isImmutable func(path string) bool
	changed     *EventMgr[ConfigChangedEvent]
	events      chan pluginEvent

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	cfg          dnsmgr.Config
	snap         snapshot
	hostname     string
	updatesQueue int
	hash         [sha1.Size]byte
	prevHash     [sha1.Size]byte
	lastConfig   dns.OSConfig

	// hostnameDirty is set when the hostname changed during a batch.
	hostnameDirty bool

	dnsMode  string
	mode     dns.Mode
	osc      dns.OSConfigurator
	private  dns.OSConfigurator
	fallback dns.OSConfigurator

	plugin     plugin.Plugin
	pluginStop chan struct{}
	limiter    plugin.RateLimiter
	retry      tstime.TimerController
	retryGen   uint64

	dnsTouched bool
	closed     bool
}

// Option configures a Manager.
type Option func(m *Manager)

// WithLogger sets the logger of the Manager.
func WithLogger(logger *zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock sets the clock used for delaying plugin restarts.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithPluginFactory sets the function creating DNS plugins.
func WithPluginFactory(f PluginFactory) Option {
	return func(m *Manager) { m.newPlugin = f }
}

// WithImmutableProbe sets the function reporting whether resolv.conf is immutable.
func WithImmutableProbe(f func(path string) bool) Option {
	return func(m *Manager) { m.isImmutable = f }
}

// New returns a Manager for cfg. The resolver config is not written
// until an IP config is added or the configuration is reloaded.
func New(cfg *dnsmgr.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:         *cfg,
		clock:       tstime.StdClock{},
		newPlugin:   plugin.New,
		isImmutable: dns.IsImmutable,
		events:      make(chan pluginEvent, 16),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = dnsmgr.ComponentLogger("dns-mgr")
	}
	m.changed = newEventMgr[ConfigChangedEvent]("config-changed", m.logger)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hash = m.snap.hash(nil)
	m.initModeLocked()
	return m
}

// ConfigChanged returns the event manager notified after every successful commit.
func (m *Manager) ConfigChanged() *EventMgr[ConfigChangedEvent] {
	return m.changed
}

// Run dispatches plugin events until ctx is done or the Manager is closed.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case pe := <-m.events:
			m.handlePluginEvent(pe)
		}
	}
}

// BeginUpdates starts a batch of changes. Commits are deferred until the
// matching EndUpdates call. Batches nest.
func (m *Manager) BeginUpdates(caller string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updatesQueue == 0 {
		m.prevHash = m.hash
	}
	m.updatesQueue++
	dnsmgr.Log(caller, m.logger.Debug(), "queueing DNS updates (%d)", m.updatesQueue)
}

// EndUpdates ends a batch of changes. When the outermost batch ends, the
// resolver config is committed, unless the DNS information did not change.
func (m *Manager) EndUpdates(caller string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updatesQueue == 0 {
		dnsmgr.Log(caller, m.logger.Warn(), "unbalanced end of DNS updates")
		return
	}
	changed := m.hostnameDirty || m.snap.hash(m.cfg.GlobalDNS) != m.prevHash
	m.updatesQueue--
	dnsmgr.Log(caller, m.logger.Debug(), "DNS updates queue (%d), changed: %t", m.updatesQueue, changed)
	if m.updatesQueue > 0 || !changed {
		return
	}
	m.updateAndLogLocked(false)
	m.prevHash = [sha1.Size]byte{}
	m.hostnameDirty = false
}

// AddIPConfig adds cfg, belonging to iface, to the DNS information.
func (m *Manager) AddIPConfig(iface string, cfg *dnsmgr.IPConfig, typ dnsmgr.IPConfigType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed, err := m.snap.add(iface, cfg, typ)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	statsConfigs.Set(float64(m.snap.len()))
	if m.updatesQueue == 0 {
		m.updateAndLogLocked(false)
	}
	return nil
}

// RemoveIPConfig removes cfg from the DNS information. It reports whether cfg was known.
func (m *Manager) RemoveIPConfig(cfg *dnsmgr.IPConfig) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.snap.remove(cfg) {
		return false
	}
	statsConfigs.Set(float64(m.snap.len()))
	if m.updatesQueue == 0 {
		m.updateAndLogLocked(false)
	}
	return true
}

// SetInitialHostname sets the hostname without committing the resolver config.
func (m *Manager) SetInitialHostname(hostname string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostname = hostname
}

// SetHostname sets the hostname, whose domain is used as search domain.
// Generic and reverse lookup hostnames, or hostnames without a domain, are ignored.
func (m *Manager) SetHostname(hostname string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := ""
	if dnsmgr.SpecificHostname(hostname) &&
		!strings.Contains(hostname, ".in-addr.arpa") &&
		strings.Contains(hostname, ".") {
		filtered = hostname
	}
	if filtered == m.hostname {
		return
	}
	m.hostname = filtered
	if m.updatesQueue > 0 {
		m.hostnameDirty = true
		return
	}
	m.updateAndLogLocked(false)
}

// IsResolvConfExplicit reports whether resolv.conf content is exactly the
// merged DNS information, i.e resolv.conf is managed and no plugin is in use.
func (m *Manager) IsResolvConfExplicit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mode.Managed() {
		return false
	}
	return m.plugin == nil
}

// Status returns the current state of the Manager.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Mode:        m.mode.String(),
		DNSMode:     m.dnsMode,
		Explicit:    m.mode.Managed() && m.plugin == nil,
		Hostname:    m.hostname,
		Configs:     m.snap.len(),
		Nameservers: m.lastConfig.Nameservers,
		Searches:    m.lastConfig.SearchDomains,
		Options:     m.lastConfig.Options,
	}
	if m.plugin != nil {
		st.Plugin = m.plugin.Name()
	}
	return st
}

// Reload applies cfg, if not nil, then selects the resolv.conf mode again
// and commits the resolver config as required by flags.
func (m *Manager) Reload(cfg *dnsmgr.Config, flags ChangeFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if cfg != nil {
		m.cfg = *cfg
	}
	m.logger.Debug().Msgf("reloading configuration: %s", flags)
	if flags&reinitFlags != 0 {
		m.initModeLocked()
	}
	if flags&updateFlags != 0 {
		m.updateAndLogLocked(false)
	}
}

// Close stops the plugin. If the resolver config was ever written, it is
// written one last time without the local caching resolver.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.clearPluginLocked()
	if m.dnsTouched {
		if err := m.updateLocked(true); err != nil {
			m.logger.Warn().Err(err).Msg("could not commit DNS configuration on shutdown")
		}
	}
	m.cancel()
}

// initModeLocked selects the resolv.conf mode and the plugin from the configuration.
func (m *Manager) initModeLocked() {
	dnsCfg := m.cfg.DNS
	paths := dnsCfg.Paths()
	dnsMode := dns.NormalizeDNSMode(dnsCfg.Mode, m.logger)
	immutable := dnsMode != dns.DNSModeNone && m.isImmutable(paths.ResolvConf)
	mode := dns.SelectMode(dnsMode, dnsCfg.RCManager, immutable, m.logger)

	pluginChanged := false
	switch dnsMode {
	case dns.DNSModeDnsmasq, dns.DNSModeUnbound:
		if m.plugin == nil || m.plugin.Name() != dnsMode {
			m.clearPluginLocked()
			p, err := m.newPlugin(dnsMode, dnsCfg, m.logger)
			if err != nil {
				m.logger.Warn().Err(err).Msgf("could not create DNS plugin %s", dnsMode)
			} else if p != nil {
				m.setPluginLocked(p)
			}
			pluginChanged = true
		}
	default:
		if m.plugin != nil {
			m.clearPluginLocked()
			pluginChanged = true
		}
	}

	m.limiter.Interval = dnsCfg.PluginRateLimit.Interval
	if m.limiter.Interval <= 0 {
		m.limiter.Interval = dnsmgr.DefaultPluginInterval
	}
	m.limiter.Burst = dnsCfg.PluginRateLimit.Burst
	if m.limiter.Burst <= 0 {
		m.limiter.Burst = dnsmgr.DefaultPluginBurst
	}

	opts := dns.Options{
		Paths:          paths,
		ResolvconfPath: dnsCfg.ResolvconfPath,
		NetconfigPath:  dnsCfg.NetconfigPath,
		HelperTimeout:  dnsCfg.HelperTimeout,
		Logger:         m.logger,
	}
	m.osc = dns.NewOSConfigurator(mode, opts)
	m.private = dns.NewDirectManager(dns.ModeUnmanaged, paths, m.logger)
	m.fallback = dns.NewDirectManager(dns.ModeSymlink, paths, m.logger)

	if pluginChanged || mode != m.mode || dnsMode != m.dnsMode {
		m.mode = mode
		m.dnsMode = dnsMode
		pluginName := "none"
		if m.plugin != nil {
			pluginName = m.plugin.Name()
		}
		m.logger.Info().Msgf("init: dns=%s rc-manager=%s plugin=%s", dnsMode, mode, pluginName)
	}
}

func (m *Manager) updateAndLogLocked(noCaching bool) {
	if err := m.updateLocked(noCaching); err != nil {
		m.logger.Warn().Err(err).Msg("could not commit DNS configuration")
	}
}

// updateLocked merges the DNS information, updates the plugin and commits
// the resolver config according to the current mode.
func (m *Manager) updateLocked(noCaching bool) error {
	m.stopRetryLocked()

	managed := m.mode.Managed()
	if managed {
		m.dnsTouched = true
	}

	global := m.cfg.GlobalDNS
	m.hash = m.snap.hash(global)
	cfg := dnsmgr.Merge(m.snap.mergeInput(global, m.hostname))

	caching := false
	if p := m.plugin; p != nil {
		if p.IsCaching() && noCaching {
			m.logger.Debug().Msgf("not updating DNS plugin %s: caching disabled", p.Name())
		} else {
			m.logger.Debug().Msgf("updating DNS plugin %s", p.Name())
			if err := p.Update(m.ctx, m.snap.pluginInput(global, m.hostname)); err != nil {
				m.logger.Warn().Err(err).Msgf("DNS plugin %s update failed", p.Name())
			} else {
				caching = p.IsCaching()
			}
		}
	}
	if caching {
		cfg.Nameservers = []string{localResolver}
	}

	var errs *multierror.Error
	var commitErr error
	written := false
	result := "skipped"
	switch {
	case managed:
		commitErr = m.osc.SetDNS(cfg)
		written = m.mode == dns.ModeSymlink || m.mode == dns.ModeFile
		result = "ok"
		if errors.Is(commitErr, dns.ErrNotApplicable) {
			m.logger.Info().Msgf("%s is not available, falling back to %s", m.mode, dns.ModeSymlink)
			commitErr = m.fallback.SetDNS(cfg)
			written = true
			result = "fallback"
		}
		if commitErr != nil {
			result = "error"
			errs = multierror.Append(errs, commitErr)
		}
	case m.mode == dns.ModeImmutable:
		m.logger.Debug().Msg("resolv.conf is immutable, not updating it")
	default:
		m.logger.Debug().Msg("resolv.conf is unmanaged, not updating it")
	}

	if !written {
		if err := m.private.SetDNS(cfg); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	statsCommits.WithLabelValues(m.mode.String(), result).Inc()
	m.lastConfig = cfg

	if managed && commitErr == nil {
		m.changed.Submit(ConfigChangedEvent{Mode: m.mode, Config: cfg})
	}
	return errs.ErrorOrNil()
}
