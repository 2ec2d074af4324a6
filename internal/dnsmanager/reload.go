package dnsmanager

import (
	"reflect"
	"strings"

	"github.com/Control-D-Inc/dnsmgr"
)

// ChangeFlags describes why the manager configuration is reloaded.
type ChangeFlags uint

const (
	// ChangeDNSMode is set when the DNS processing mode changed.
	ChangeDNSMode ChangeFlags = 1 << iota
	// ChangeRCManager is set when the resolv.conf manager changed.
	ChangeRCManager
	// ChangeSIGHUP is set on a full reload, e.g SIGHUP.
	ChangeSIGHUP
	// ChangeSIGUSR1 is set when the resolver config must be rewritten, e.g SIGUSR1.
	ChangeSIGUSR1
	// ChangeGlobalDNS is set when the global DNS config changed.
	ChangeGlobalDNS
	// ChangeDNSSettings is set when other DNS settings, e.g paths, changed.
	ChangeDNSSettings
)

var changeFlagNames = []string{"dns-mode", "rc-manager", "sighup", "sigusr1", "global-dns", "dns-settings"}

func (f ChangeFlags) String() string {
	var names []string
	for i, name := range changeFlagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// reinitFlags are the changes requiring the resolv.conf mode to be selected again.
const reinitFlags = ChangeDNSMode | ChangeRCManager | ChangeSIGHUP | ChangeDNSSettings

// updateFlags are the changes requiring the resolver config to be committed again.
const updateFlags = reinitFlags | ChangeSIGUSR1 | ChangeGlobalDNS

// Changes returns the flags describing the differences between old and new.
func Changes(old, new *dnsmgr.Config) ChangeFlags {
	var flags ChangeFlags
	if old.DNS.Mode != new.DNS.Mode {
		flags |= ChangeDNSMode
	}
	if old.DNS.RCManager != new.DNS.RCManager {
		flags |= ChangeRCManager
	}
	if !reflect.DeepEqual(old.GlobalDNS, new.GlobalDNS) {
		flags |= ChangeGlobalDNS
	}
	o, n := old.DNS, new.DNS
	o.Mode, o.RCManager = n.Mode, n.RCManager
	if !reflect.DeepEqual(o, n) {
		flags |= ChangeDNSSettings
	}
	return flags
}
