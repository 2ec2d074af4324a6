package dnsmgr

import (
	"net/netip"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/publicsuffix"
)

// genericHostnames are hostnames which carry no information about the host's domain.
var genericHostnames = map[string]struct{}{
	"(none)":                  {},
	"localhost":               {},
	"localhost6":              {},
	"localhost.localdomain":   {},
	"localhost6.localdomain6": {},
}

// ValidSearchDomain reports whether domain may be used as a resolv.conf search entry.
// The domain must be syntactically valid and must not be a public suffix like
// "com" or "co.uk". Unknown single label domains, e.g "lan", are accepted.
func ValidSearchDomain(domain string) bool {
	if domain == "" {
		return false
	}
	if _, ok := dns.IsDomainName(domain); !ok {
		return false
	}
	d := strings.ToLower(strings.TrimSuffix(domain, "."))
	if d == "" {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(d)
	if suffix != d {
		return true
	}
	// The publicsuffix package falls back to the last label for unlisted TLDs.
	return !icann && !strings.Contains(suffix, ".")
}

// SpecificHostname reports whether hostname identifies this host, as opposed
// to an empty or generic name like "localhost".
func SpecificHostname(hostname string) bool {
	if hostname == "" {
		return false
	}
	_, generic := genericHostnames[strings.ToLower(hostname)]
	return !generic
}

// HostnameSearchDomain returns the search domain derived from hostname,
// or an empty string if hostname does not give one.
//
// For "laptop.corp.example", the returned domain is "corp.example". If the part
// after the first dot is not a valid search domain, the hostname itself is used.
func HostnameSearchDomain(hostname string) string {
	if hostname == "" {
		return ""
	}
	if _, err := netip.ParseAddr(hostname); err == nil {
		return ""
	}
	_, domain, found := strings.Cut(hostname, ".")
	if !found {
		return ""
	}
	if ValidSearchDomain(domain) {
		return domain
	}
	if ValidSearchDomain(hostname) {
		return hostname
	}
	return ""
}
