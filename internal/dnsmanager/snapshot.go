package dnsmanager

import (
	"crypto/sha1"
	"slices"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/plugin"
)

// snapshot is the set of IP configs currently contributing DNS information.
type snapshot struct {
	vpn4, vpn6   []*dnsmgr.IPConfig
	best4, best6 *dnsmgr.IPConfig
	// configs holds every non vpn config, including the primaries.
	configs []*dnsmgr.IPConfig
	ifaces  map[*dnsmgr.IPConfig]string
}

// add adds cfg to the snapshot. It reports whether the snapshot changed:
// adding a config that is already present with the same kind and iface is a no-op.
func (s *snapshot) add(iface string, cfg *dnsmgr.IPConfig, typ dnsmgr.IPConfigType) (bool, error) {
	if cfg == nil || !typ.Valid() {
		return false, dnsmgr.ErrInvalidConfigType
	}
	if s.ifaces == nil {
		s.ifaces = make(map[*dnsmgr.IPConfig]string)
	}
	old, tagged := s.ifaces[cfg]
	changed := !tagged || old != iface
	s.ifaces[cfg] = iface

	switch typ {
	case dnsmgr.IPConfigTypeVPN:
		if cfg.Family == dnsmgr.FamilyIPv6 {
			changed = addConfig(&s.vpn6, cfg) || changed
		} else {
			changed = addConfig(&s.vpn4, cfg) || changed
		}
		return changed, nil
	case dnsmgr.IPConfigTypeBestDevice:
		best := &s.best4
		if cfg.Family == dnsmgr.FamilyIPv6 {
			best = &s.best6
		}
		if *best != cfg {
			*best = cfg
			changed = true
		}
	}
	changed = addConfig(&s.configs, cfg) || changed
	return changed, nil
}

// remove removes cfg from the snapshot, reporting whether it was present.
func (s *snapshot) remove(cfg *dnsmgr.IPConfig) bool {
	found := false
	for _, list := range []*[]*dnsmgr.IPConfig{&s.configs, &s.vpn4, &s.vpn6} {
		if i := slices.Index(*list, cfg); i >= 0 {
			*list = slices.Delete(*list, i, i+1)
			found = true
		}
	}
	if s.best4 == cfg {
		s.best4 = nil
	}
	if s.best6 == cfg {
		s.best6 = nil
	}
	if found {
		delete(s.ifaces, cfg)
	}
	return found
}

func (s *snapshot) len() int {
	return len(s.configs) + len(s.vpn4) + len(s.vpn6)
}

func (s *snapshot) iface(cfg *dnsmgr.IPConfig) string {
	return s.ifaces[cfg]
}

// others returns the general configs, without the primaries.
func (s *snapshot) others() []*dnsmgr.IPConfig {
	res := make([]*dnsmgr.IPConfig, 0, len(s.configs))
	for _, c := range s.configs {
		if c == s.best4 || c == s.best6 {
			continue
		}
		res = append(res, c)
	}
	return res
}

// hash returns the hash of the DNS information of the snapshot and global.
func (s *snapshot) hash(global *dnsmgr.GlobalDNSConfig) [sha1.Size]byte {
	h := sha1.New()
	if global != nil {
		global.WriteHash(h)
		return [sha1.Size]byte(h.Sum(nil))
	}
	for _, c := range s.vpn4 {
		c.WriteHash(h)
	}
	s.best4.WriteHash(h)
	for _, c := range s.vpn6 {
		c.WriteHash(h)
	}
	s.best6.WriteHash(h)
	for _, c := range s.others() {
		c.WriteHash(h)
	}
	return [sha1.Size]byte(h.Sum(nil))
}

func (s *snapshot) mergeInput(global *dnsmgr.GlobalDNSConfig, hostname string) dnsmgr.MergeInput {
	return dnsmgr.MergeInput{
		Global:   global,
		VPN4:     s.vpn4,
		VPN6:     s.vpn6,
		Best4:    s.best4,
		Best6:    s.best6,
		Others:   s.configs,
		Hostname: hostname,
		Iface:    s.iface,
	}
}

// pluginInput returns the plugin view of the snapshot. The config lists are
// left empty when a global config is in effect.
func (s *snapshot) pluginInput(global *dnsmgr.GlobalDNSConfig, hostname string) plugin.Input {
	in := plugin.Input{Global: global, Hostname: hostname}
	if global != nil {
		return in
	}
	in.VPN = slices.Concat(s.vpn4, s.vpn6)
	if s.best4 != nil {
		in.Devices = append(in.Devices, s.best4)
	}
	if s.best6 != nil {
		in.Devices = append(in.Devices, s.best6)
	}
	in.Others = s.others()
	ifaces := make(map[*dnsmgr.IPConfig]string, len(s.ifaces))
	for c, name := range s.ifaces {
		ifaces[c] = name
	}
	in.Iface = func(c *dnsmgr.IPConfig) string { return ifaces[c] }
	return in
}

func addConfig(list *[]*dnsmgr.IPConfig, cfg *dnsmgr.IPConfig) bool {
	if slices.Contains(*list, cfg) {
		return false
	}
	*list = append(*list, cfg)
	return true
}
