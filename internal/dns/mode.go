package dns

import (
	"strings"

	"github.com/rs/zerolog"
)

// Mode is the way resolv.conf is managed.
type Mode int

const (
	ModeUnknown Mode = iota
	// ModeUnmanaged leaves resolv.conf alone, only the private copy is written.
	ModeUnmanaged
	// ModeImmutable is like ModeUnmanaged, selected when resolv.conf has the immutable attribute.
	ModeImmutable
	// ModeSymlink makes resolv.conf a symlink to the private copy.
	ModeSymlink
	// ModeFile writes resolv.conf in place.
	ModeFile
	// ModeResolvconf hands the config to the resolvconf program.
	ModeResolvconf
	// ModeNetconfig hands the config to the netconfig program.
	ModeNetconfig
)

// DefaultMode is the mode used when no rc manager is configured.
const DefaultMode = ModeSymlink

var modeNames = map[Mode]string{
	ModeUnknown:    "unknown",
	ModeUnmanaged:  "unmanaged",
	ModeImmutable:  "immutable",
	ModeSymlink:    "symlink",
	ModeFile:       "file",
	ModeResolvconf: "resolvconf",
	ModeNetconfig:  "netconfig",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return modeNames[ModeUnknown]
}

// Managed reports whether the mode writes the system resolv.conf, directly or via a helper.
func (m Mode) Managed() bool {
	switch m {
	case ModeSymlink, ModeFile, ModeResolvconf, ModeNetconfig:
		return true
	}
	return false
}

// ParseRCManager parses the rc manager setting. The empty string selects
// DefaultMode, "none" is an alias of "symlink". Unrecognized values return
// ModeUnknown.
func ParseRCManager(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultMode
	case "symlink", "none":
		return ModeSymlink
	case "file":
		return ModeFile
	case "resolvconf":
		return ModeResolvconf
	case "netconfig":
		return ModeNetconfig
	case "unmanaged":
		return ModeUnmanaged
	}
	return ModeUnknown
}

// DNS processing modes.
const (
	DNSModeDefault = "default"
	DNSModeNone    = "none"
	DNSModeDnsmasq = "dnsmasq"
	DNSModeUnbound = "unbound"
)

// NormalizeDNSMode returns the canonical DNS processing mode for s.
// Unknown values are reported with a warning and replaced by DNSModeDefault.
func NormalizeDNSMode(s string, logger *zerolog.Logger) string {
	mode := strings.ToLower(strings.TrimSpace(s))
	switch mode {
	case "":
		return DNSModeDefault
	case DNSModeDefault, DNSModeNone, DNSModeDnsmasq, DNSModeUnbound:
		return mode
	}
	logger.Warn().Msgf("unknown DNS mode %q, using %q", s, DNSModeDefault)
	return DNSModeDefault
}

// SelectMode picks the resolv.conf management mode.
//
// dnsMode "none" always selects ModeUnmanaged. Otherwise, an immutable
// resolv.conf selects ModeImmutable, and the rc manager setting decides the rest.
func SelectMode(dnsMode, rcManager string, immutable bool, logger *zerolog.Logger) Mode {
	if dnsMode == DNSModeNone {
		return ModeUnmanaged
	}
	if immutable {
		return ModeImmutable
	}
	mode := ParseRCManager(rcManager)
	if mode == ModeUnknown {
		logger.Warn().Msgf("unknown rc manager %q, using %q", rcManager, DefaultMode)
		return DefaultMode
	}
	return mode
}
