// Copyright (c) 2021 Tailscale Inc & AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dns

import (
	"bufio"
	"fmt"
	"slices"

	"tailscale.com/types/logger"
)

var (
	_ OSConfigurator = (*directManager)(nil)
	_ OSConfigurator = (*openresolvManager)(nil)
	_ OSConfigurator = (*netconfigManager)(nil)
)

// An OSConfigurator applies DNS settings to the operating system.
type OSConfigurator interface {
	// SetDNS updates the OS's DNS configuration to match cfg.
	//
	// It returns ErrNotApplicable if the configurator can not be used on
	// this system, e.g the helper program is not installed. The caller
	// may then retry with another configurator.
	SetDNS(cfg OSConfig) error

	// Mode reports the resolv.conf management mode of the configurator.
	Mode() Mode
}

// OSConfig is a merged resolver configuration, ready to be written to the OS.
type OSConfig struct {
	// Nameservers are the textual nameservers addresses. Link local IPv6
	// addresses may carry an interface scope, e.g "fe80::1%eth0".
	Nameservers []string
	// SearchDomains are the domain suffixes to use when expanding
	// single-label name queries.
	SearchDomains []string
	// Options are resolver options, e.g "ndots:2" or "rotate".
	Options []string
	// NISDomain and NISServers are only consumed by the netconfig helper.
	NISDomain  string
	NISServers []string
}

// Equal reports whether a and b hold the same resolver information.
func (a OSConfig) Equal(b OSConfig) bool {
	return slices.Equal(a.Nameservers, b.Nameservers) &&
		slices.Equal(a.SearchDomains, b.SearchDomains) &&
		slices.Equal(a.Options, b.Options) &&
		a.NISDomain == b.NISDomain &&
		slices.Equal(a.NISServers, b.NISServers)
}

// Format implements the fmt.Formatter interface, so OSConfig is logged in a
// compact form.
func (a OSConfig) Format(f fmt.State, verb rune) {
	logger.ArgWriter(func(w *bufio.Writer) {
		writeList := func(name string, list []string) {
			_, _ = w.WriteString(name + ":[")
			for i, s := range list {
				if i != 0 {
					_, _ = w.WriteString(" ")
				}
				_, _ = w.WriteString(s)
			}
			_, _ = w.WriteString("]")
		}
		_, _ = w.WriteString("{")
		writeList("Nameservers", a.Nameservers)
		_, _ = w.WriteString(" ")
		writeList("SearchDomains", a.SearchDomains)
		_, _ = w.WriteString(" ")
		writeList("Options", a.Options)
		if a.NISDomain != "" || len(a.NISServers) > 0 {
			_, _ = fmt.Fprintf(w, " NISDomain:%s ", a.NISDomain)
			writeList("NISServers", a.NISServers)
		}
		_, _ = w.WriteString("}")
	}).Format(f, verb)
}
