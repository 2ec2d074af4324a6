package dnsmgr

import (
	"net/netip"
	"strings"

	"github.com/Control-D-Inc/dnsmgr/internal/dns"
)

const (
	// MaxSearchDomains is the number of search domains libc reads from resolv.conf.
	MaxSearchDomains = 6
	// MaxSearchLength is the size limit of the resolv.conf search line.
	MaxSearchLength = 256
)

// MergeInput is the set of configs the resolver config is built from.
type MergeInput struct {
	// Global, if set, replaces all other DNS information.
	Global *GlobalDNSConfig

	VPN4, VPN6   []*IPConfig
	Best4, Best6 *IPConfig
	// Others are all other configs, in insertion order. The primaries may be
	// present, they are skipped.
	Others []*IPConfig

	Hostname string
	// Iface returns the interface name associated with a config, used to
	// scope link local IPv6 nameservers. It may be nil.
	Iface func(*IPConfig) string
}

// Merge builds the resolver config from in. It is pure and deterministic.
func Merge(in MergeInput) dns.OSConfig {
	var rc resolvConfBuilder
	if in.Global != nil {
		rc.mergeGlobal(in.Global)
	} else {
		for _, c := range in.VPN4 {
			rc.mergeIPConfig(c, in.iface(c))
		}
		if in.Best4 != nil {
			rc.mergeIPConfig(in.Best4, in.iface(in.Best4))
		}
		for _, c := range in.VPN6 {
			rc.mergeIPConfig(c, in.iface(c))
		}
		if in.Best6 != nil {
			rc.mergeIPConfig(in.Best6, in.iface(in.Best6))
		}
		for _, c := range in.Others {
			if c == in.Best4 || c == in.Best6 {
				continue
			}
			rc.mergeIPConfig(c, in.iface(c))
		}
	}

	if domain := HostnameSearchDomain(in.Hostname); domain != "" {
		rc.addSearch(domain)
	}
	rc.truncateSearches()

	return dns.OSConfig{
		Nameservers:   rc.nameservers,
		SearchDomains: rc.searches,
		Options:       rc.options,
		NISDomain:     rc.nisDomain,
		NISServers:    rc.nisServers,
	}
}

func (in MergeInput) iface(c *IPConfig) string {
	if in.Iface == nil {
		return ""
	}
	return in.Iface(c)
}

type resolvConfBuilder struct {
	nameservers []string
	searches    []string
	options     []string
	nisDomain   string
	nisServers  []string
}

func (rc *resolvConfBuilder) mergeGlobal(g *GlobalDNSConfig) {
	for _, s := range g.Searches {
		if s != "" {
			rc.addSearch(s)
		}
	}
	for _, o := range g.Options {
		addUnique(&rc.options, o)
	}
	if d := g.DefaultDomain(); d != nil {
		for _, s := range d.Servers {
			addUnique(&rc.nameservers, s)
		}
	}
}

func (rc *resolvConfBuilder) mergeIPConfig(c *IPConfig, iface string) {
	for _, ns := range c.Nameservers {
		addUnique(&rc.nameservers, nameserverString(ns, iface))
	}

	for _, s := range c.Searches {
		if ValidSearchDomain(s) {
			rc.addSearch(s)
		}
	}
	// Domains are a fallback for searches. A single domain is only used
	// when no search is given.
	if len(c.Domains) > 1 || len(c.Searches) == 0 {
		for _, d := range c.Domains {
			if ValidSearchDomain(d) {
				rc.addSearch(d)
			}
		}
	}

	for _, o := range c.DNSOptions {
		rc.addOption(o)
	}

	for _, ns := range c.NISServers {
		addUnique(&rc.nisServers, ns.String())
	}
	if rc.nisDomain == "" && c.NISDomain != "" {
		rc.nisDomain = c.NISDomain
	}
}

func (rc *resolvConfBuilder) addSearch(domain string) {
	addUnique(&rc.searches, domain)
}

// addOption adds opt unless an option with the same name is present.
// The name is the text before the ':', e.g "ndots" for "ndots:2".
func (rc *resolvConfBuilder) addOption(opt string) {
	if opt == "" {
		return
	}
	name := optionName(opt)
	for _, o := range rc.options {
		if optionName(o) == name {
			return
		}
	}
	rc.options = append(rc.options, opt)
}

// truncateSearches keeps at most MaxSearchDomains searches, stopping before the
// search line would exceed MaxSearchLength.
func (rc *resolvConfBuilder) truncateSearches() {
	n := min(len(rc.searches), MaxSearchDomains)
	length := 0
	i := 0
	for ; i < n; i++ {
		length += len(rc.searches[i]) + 1
		if length > MaxSearchLength {
			break
		}
	}
	if i < len(rc.searches) {
		rc.searches = rc.searches[:i]
	}
}

func optionName(opt string) string {
	name, _, _ := strings.Cut(opt, ":")
	return name
}

func addUnique(list *[]string, s string) {
	for _, v := range *list {
		if v == s {
			return
		}
	}
	*list = append(*list, s)
}

// nameserverString returns the resolv.conf form of a nameserver address.
// IPv4 mapped addresses are written as IPv4, link local IPv6 addresses are
// scoped to iface.
func nameserverString(addr netip.Addr, iface string) string {
	if addr.Is4In6() {
		return addr.Unmap().String()
	}
	if addr.Is6() && addr.IsLinkLocalUnicast() {
		addr = addr.WithZone("")
		if iface != "" {
			return addr.String() + "%" + iface
		}
	}
	return addr.String()
}
