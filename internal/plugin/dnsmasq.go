package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"

	"github.com/Control-D-Inc/dnsmgr"
)

const (
	dnsmasqConfName    = "dnsmasq.conf"
	dnsmasqStopTimeout = 5 * time.Second
	eventsBufferSize   = 16
)

// Dnsmasq runs a dnsmasq child process, listening on 127.0.0.1 and
// forwarding queries to the merged nameservers. VPN nameservers only
// serve their own domains when the VPN provides any.
type Dnsmasq struct {
	path    string
	confDir string
	logger  *zerolog.Logger
	events  chan Event

	mu       sync.Mutex
	proc     *dnsmasqProcess
	lastConf []byte
}

type dnsmasqProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	stopping atomic.Bool
}

func (p *dnsmasqProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// NewDnsmasq returns a dnsmasq plugin. The child process is started by the first Update.
func NewDnsmasq(cfg dnsmgr.DnsmasqConfig, logger *zerolog.Logger) *Dnsmasq {
	path := cfg.Path
	if path == "" {
		path = dnsmgr.DefaultDnsmasqPath
	}
	confDir := cfg.ConfDir
	if confDir == "" {
		confDir = dnsmgr.DefaultDnsmasqConfDir
	}
	return &Dnsmasq{
		path:    path,
		confDir: confDir,
		logger:  logger,
		events:  make(chan Event, eventsBufferSize),
	}
}

func (d *Dnsmasq) Name() string { return "dnsmasq" }

func (d *Dnsmasq) IsCaching() bool { return true }

func (d *Dnsmasq) Events() <-chan Event { return d.events }

func (d *Dnsmasq) confPath() string {
	return filepath.Join(d.confDir, dnsmasqConfName)
}

// Update writes the dnsmasq config for in, then (re)starts dnsmasq if the
// config changed or the child is not running.
func (d *Dnsmasq) Update(ctx context.Context, in Input) error {
	conf := dnsmasqConfig(in)

	d.mu.Lock()
	defer d.mu.Unlock()

	running := d.proc != nil && !d.proc.exited()
	if running && bytes.Equal(conf, d.lastConf) {
		return nil
	}
	if err := os.MkdirAll(d.confDir, 0o755); err != nil {
		return fmt.Errorf("dnsmasq: creating config dir: %w", err)
	}
	if err := os.WriteFile(d.confPath(), conf, 0o644); err != nil {
		return fmt.Errorf("dnsmasq: writing config: %w", err)
	}
	d.lastConf = conf

	if running {
		d.stopLocked()
	}
	return d.startLocked(ctx)
}

func (d *Dnsmasq) startLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(d.path,
		"--keep-in-foreground",
		"--conf-file="+d.confPath(),
		"--pid-file=",
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("dnsmasq: starting %s: %w", d.path, err)
	}
	p := &dnsmasqProcess{cmd: cmd, done: make(chan struct{})}
	d.proc = p
	d.logger.Debug().Int("pid", cmd.Process.Pid).Msg("dnsmasq started")
	go d.wait(p)
	return nil
}

// wait reaps the child, reporting an unexpected exit as EventChildQuit.
func (d *Dnsmasq) wait(p *dnsmasqProcess) {
	err := p.cmd.Wait()
	close(p.done)
	if p.stopping.Load() {
		return
	}
	d.logger.Warn().Err(err).Msg("dnsmasq exited unexpectedly")
	d.emit(Event{Type: EventChildQuit, Err: err})
}

func (d *Dnsmasq) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn().Msgf("dropping dnsmasq %s event, channel is full", ev.Type)
	}
}

func (d *Dnsmasq) stopLocked() {
	p := d.proc
	d.proc = nil
	if p == nil || p.exited() {
		return
	}
	p.stopping.Store(true)
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(dnsmasqStopTimeout):
		d.logger.Warn().Msg("dnsmasq did not stop in time, killing it")
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}

// Stop terminates the dnsmasq child and removes its config file.
func (d *Dnsmasq) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.lastConf = nil
	if err := os.Remove(d.confPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// dnsmasqConfig generates the dnsmasq config file content for in.
func dnsmasqConfig(in Input) []byte {
	var b strings.Builder
	b.WriteString("# Generated by dnsmgr\n")
	b.WriteString("listen-address=127.0.0.1\n")
	b.WriteString("bind-interfaces\n")
	b.WriteString("no-resolv\n")
	b.WriteString("no-hosts\n")
	b.WriteString("cache-size=400\n")

	seen := make(map[string]struct{})
	server := func(domain, ns string) {
		line := "server="
		if domain != "" {
			line += "/" + domain + "/"
		}
		line += ns
		if _, ok := seen[line]; ok {
			return
		}
		seen[line] = struct{}{}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if in.Global != nil {
		for _, name := range in.Global.DomainNames() {
			d := in.Global.Domains[name]
			if d == nil {
				continue
			}
			domain := ""
			if name != dnsmgr.GlobalDomainDefault {
				domain = splitDomain(name)
				if domain == "" {
					continue
				}
			}
			for _, ns := range d.Servers {
				server(domain, ns)
			}
		}
		return []byte(b.String())
	}

	for _, c := range in.VPN {
		domains := configDomains(c)
		for _, addr := range c.Nameservers {
			ns := nameserver(addr, in.iface(c))
			if len(domains) == 0 {
				server("", ns)
				continue
			}
			for _, domain := range domains {
				server(domain, ns)
			}
		}
	}
	for _, list := range [][]*dnsmgr.IPConfig{in.Devices, in.Others} {
		for _, c := range list {
			for _, addr := range c.Nameservers {
				server("", nameserver(addr, in.iface(c)))
			}
		}
	}
	return []byte(b.String())
}

// configDomains returns the valid searches and domains of c, for split DNS.
func configDomains(c *dnsmgr.IPConfig) []string {
	var domains []string
	for _, list := range [][]string{c.Searches, c.Domains} {
		for _, s := range list {
			if d := splitDomain(s); d != "" {
				domains = append(domains, d)
			}
		}
	}
	return domains
}

// splitDomain returns the form of domain used in dnsmasq server lines, or
// an empty string if domain is not a valid domain name.
func splitDomain(domain string) string {
	if _, ok := dns.IsDomainName(domain); !ok {
		return ""
	}
	return strings.TrimSuffix(dns.CanonicalName(domain), ".")
}

// nameserver returns the dnsmasq form of addr. Link local IPv6 nameservers
// are scoped to iface, replacing any zone addr carries.
func nameserver(addr netip.Addr, iface string) string {
	addr = addr.Unmap()
	if addr.Is6() && addr.IsLinkLocalUnicast() {
		addr = addr.WithZone("")
		if iface != "" {
			return addr.String() + "@" + iface
		}
	}
	return addr.String()
}
