package dnsmgr

import (
	"hash"
	"sort"
)

// GlobalDomainDefault is the name of the global domain applied to every query.
const GlobalDomainDefault = "*"

// GlobalDNSDomain specifies the servers used for a domain of the global DNS config.
type GlobalDNSDomain struct {
	Servers []string `mapstructure:"servers" toml:"servers,omitempty" validate:"dive,ip"`
	Options []string `mapstructure:"options" toml:"options,omitempty"`
}

// GlobalDNSConfig is a system wide DNS override. When present, it replaces
// all DNS information contributed by devices and VPNs.
type GlobalDNSConfig struct {
	Searches []string                    `mapstructure:"searches" toml:"searches,omitempty"`
	Options  []string                    `mapstructure:"options" toml:"options,omitempty"`
	Domains  map[string]*GlobalDNSDomain `mapstructure:"domain" toml:"domain,omitempty" validate:"omitempty,dive"`
}

// DefaultDomain returns the "*" domain, or nil if it is missing.
func (g *GlobalDNSConfig) DefaultDomain() *GlobalDNSDomain {
	if g == nil {
		return nil
	}
	return g.Domains[GlobalDomainDefault]
}

// DomainNames returns the configured domain names in sorted order.
func (g *GlobalDNSConfig) DomainNames() []string {
	names := make([]string, 0, len(g.Domains))
	for name := range g.Domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteHash writes the content of g to h. Domains are visited in sorted order.
func (g *GlobalDNSConfig) WriteHash(h hash.Hash) {
	if g == nil {
		return
	}
	for _, s := range g.Searches {
		hashString(h, s)
	}
	hashEnd(h)
	for _, s := range g.Options {
		hashString(h, s)
	}
	hashEnd(h)
	for _, name := range g.DomainNames() {
		hashString(h, name)
		d := g.Domains[name]
		if d == nil {
			hashEnd(h)
			continue
		}
		for _, s := range d.Servers {
			hashString(h, s)
		}
		hashEnd(h)
		for _, s := range d.Options {
			hashString(h, s)
		}
		hashEnd(h)
	}
	hashEnd(h)
}
