package dns

import (
	"bytes"
	"io"
	"strings"
)

// Identity is the name dnsmgr registers itself with towards resolv.conf
// helpers, and the name written in the generated file header.
const Identity = "dnsmgr"

const (
	resolvConfHeader = "# Generated by " + Identity + "\n"
	// libc only reads the first 3 nameservers.
	resolvConfMaxNameservers = 3
	resolvConfNameserverNote = "# NOTE: the libc resolver may not support more than 3 nameservers.\n" +
		"# The nameservers listed below may not be recognized.\n"
)

// writeResolvConf writes cfg to w in resolv.conf format.
func writeResolvConf(w io.Writer, cfg OSConfig) error {
	var b strings.Builder
	b.WriteString(resolvConfHeader)
	if len(cfg.SearchDomains) > 0 {
		b.WriteString("search ")
		b.WriteString(strings.Join(cfg.SearchDomains, " "))
		b.WriteString("\n")
	}
	for i, ns := range cfg.Nameservers {
		if i == resolvConfMaxNameservers {
			b.WriteString(resolvConfNameserverNote)
		}
		b.WriteString("nameserver ")
		b.WriteString(ns)
		b.WriteString("\n")
	}
	if len(cfg.Options) > 0 {
		b.WriteString("options ")
		b.WriteString(strings.Join(cfg.Options, " "))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ResolvConfContent returns the resolv.conf content for cfg.
func ResolvConfContent(cfg OSConfig) []byte {
	var buf bytes.Buffer
	_ = writeResolvConf(&buf, cfg)
	return buf.Bytes()
}
