// Package plugin defines the contract of DNS plugins, which run a local,
// possibly caching, resolver fed with the merged DNS configs.
package plugin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/dns"
)

// EventType is the kind of an Event reported by a plugin.
type EventType int

const (
	// EventFailed reports the plugin can not serve DNS anymore.
	EventFailed EventType = iota + 1
	// EventChildQuit reports the plugin child process exited unexpectedly.
	EventChildQuit
)

func (t EventType) String() string {
	switch t {
	case EventFailed:
		return "failed"
	case EventChildQuit:
		return "child-quit"
	}
	return "unknown"
}

// Event is an asynchronous notification from a plugin.
type Event struct {
	Type EventType
	Err  error
}

// Input is the DNS information handed to a plugin.
//
// When a global DNS config is set, the config lists are empty.
type Input struct {
	VPN     []*dnsmgr.IPConfig
	Devices []*dnsmgr.IPConfig
	Others  []*dnsmgr.IPConfig
	Global  *dnsmgr.GlobalDNSConfig

	Hostname string
	// Iface returns the interface a config belongs to. It may be nil.
	Iface func(*dnsmgr.IPConfig) string
}

func (in Input) iface(c *dnsmgr.IPConfig) string {
	if in.Iface == nil {
		return ""
	}
	return in.Iface(c)
}

// Plugin is a local resolver managed by dnsmgr.
type Plugin interface {
	// Name returns the plugin name, e.g "dnsmasq".
	Name() string
	// IsCaching reports whether the plugin runs a caching resolver on 127.0.0.1.
	// If true, resolv.conf points to the local resolver when Update succeeds.
	IsCaching() bool
	// Update pushes the current DNS information to the plugin.
	Update(ctx context.Context, in Input) error
	// Events returns the channel on which the plugin reports asynchronous events.
	Events() <-chan Event
	// Stop stops the plugin and its child process, if any.
	Stop() error
}

// New returns the plugin for the given DNS mode. It returns nil, nil for
// modes which do not use a plugin.
func New(mode string, cfg dnsmgr.DNSConfig, logger *zerolog.Logger) (Plugin, error) {
	switch mode {
	case dns.DNSModeDnsmasq:
		return NewDnsmasq(cfg.Dnsmasq, logger), nil
	case dns.DNSModeUnbound:
		return NewUnbound(cfg.Unbound, cfg.HelperTimeout, logger), nil
	case dns.DNSModeDefault, dns.DNSModeNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown plugin %q", mode)
}
