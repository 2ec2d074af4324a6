// Package resolvconffile reads back the resolver config in effect on the system.
package resolvconffile

import (
	"tailscale.com/net/dns/resolvconffile"

	"github.com/Control-D-Inc/dnsmgr/internal/dns"
)

// File is the DNS information found in a resolv.conf file.
type File struct {
	Path          string
	Nameservers   []string
	SearchDomains []string
}

// Read parses the resolv.conf file at path.
func Read(path string) (*File, error) {
	c, err := resolvconffile.ParseFile(path)
	if err != nil {
		return nil, err
	}
	f := &File{Path: path}
	for _, ns := range c.Nameservers {
		f.Nameservers = append(f.Nameservers, ns.String())
	}
	for _, d := range c.SearchDomains {
		f.SearchDomains = append(f.SearchDomains, d.WithoutTrailingDot())
	}
	return f, nil
}

// Matches reports whether f carries the nameservers and search domains of cfg.
// Options and NIS data are not compared.
func (f *File) Matches(cfg dns.OSConfig) bool {
	got := dns.OSConfig{Nameservers: f.Nameservers, SearchDomains: f.SearchDomains}
	return got.Equal(dns.OSConfig{Nameservers: cfg.Nameservers, SearchDomains: cfg.SearchDomains})
}
