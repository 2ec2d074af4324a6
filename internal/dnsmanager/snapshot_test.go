package dnsmanager

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Control-D-Inc/dnsmgr"
)

func testIPConfig(family dnsmgr.Family, ns ...string) *dnsmgr.IPConfig {
	c := &dnsmgr.IPConfig{Family: family}
	for _, s := range ns {
		c.Nameservers = append(c.Nameservers, netip.MustParseAddr(s))
	}
	return c
}

func addConfigT(t *testing.T, s *snapshot, iface string, cfg *dnsmgr.IPConfig, typ dnsmgr.IPConfigType) bool {
	t.Helper()
	changed, err := s.add(iface, cfg, typ)
	require.NoError(t, err)
	return changed
}

func TestSnapshotAddRemove(t *testing.T) {
	var s snapshot
	eth0 := testIPConfig(dnsmgr.FamilyIPv4, "192.168.1.1")
	wlan0 := testIPConfig(dnsmgr.FamilyIPv4, "10.0.0.1")
	eth0v6 := testIPConfig(dnsmgr.FamilyIPv6, "2001:db8::1")
	tun0 := testIPConfig(dnsmgr.FamilyIPv4, "10.8.0.1")

	addConfigT(t, &s, "eth0", eth0, dnsmgr.IPConfigTypeBestDevice)
	addConfigT(t, &s, "wlan0", wlan0, dnsmgr.IPConfigTypeDefault)
	addConfigT(t, &s, "eth0", eth0v6, dnsmgr.IPConfigTypeBestDevice)
	assert.True(t, addConfigT(t, &s, "tun0", tun0, dnsmgr.IPConfigTypeVPN))
	// Adding twice is a no-op.
	assert.False(t, addConfigT(t, &s, "tun0", tun0, dnsmgr.IPConfigTypeVPN))
	assert.False(t, addConfigT(t, &s, "wlan0", wlan0, dnsmgr.IPConfigTypeDefault))
	assert.False(t, addConfigT(t, &s, "eth0", eth0, dnsmgr.IPConfigTypeBestDevice))
	// A new iface for a known config is a change.
	assert.True(t, addConfigT(t, &s, "tun1", tun0, dnsmgr.IPConfigTypeVPN))
	assert.True(t, addConfigT(t, &s, "tun0", tun0, dnsmgr.IPConfigTypeVPN))

	assert.Same(t, eth0, s.best4)
	assert.Same(t, eth0v6, s.best6)
	assert.Equal(t, []*dnsmgr.IPConfig{tun0}, s.vpn4)
	assert.Empty(t, s.vpn6)
	assert.Equal(t, []*dnsmgr.IPConfig{eth0, wlan0, eth0v6}, s.configs)
	assert.Equal(t, []*dnsmgr.IPConfig{wlan0}, s.others())
	assert.Equal(t, 4, s.len())
	assert.Equal(t, "tun0", s.iface(tun0))

	// A new primary keeps the old one in the general list.
	assert.True(t, addConfigT(t, &s, "wlan0", wlan0, dnsmgr.IPConfigTypeBestDevice))
	assert.Same(t, wlan0, s.best4)
	assert.Equal(t, []*dnsmgr.IPConfig{eth0}, s.others())

	assert.True(t, s.remove(wlan0))
	assert.Nil(t, s.best4)
	assert.Equal(t, "", s.iface(wlan0))
	assert.True(t, s.remove(tun0))
	assert.Empty(t, s.vpn4)
	assert.False(t, s.remove(tun0))
	assert.False(t, s.remove(testIPConfig(dnsmgr.FamilyIPv4)))
	assert.Equal(t, 2, s.len())
}

func TestSnapshotAddInvalid(t *testing.T) {
	var s snapshot
	_, err := s.add("eth0", testIPConfig(dnsmgr.FamilyIPv4), dnsmgr.IPConfigType(42))
	assert.ErrorIs(t, err, dnsmgr.ErrInvalidConfigType)
	_, err = s.add("eth0", nil, dnsmgr.IPConfigTypeDefault)
	assert.ErrorIs(t, err, dnsmgr.ErrInvalidConfigType)
	assert.Equal(t, 0, s.len())
}

func TestSnapshotHash(t *testing.T) {
	var s snapshot
	empty := s.hash(nil)

	eth0 := testIPConfig(dnsmgr.FamilyIPv4, "192.168.1.1")
	addConfigT(t, &s, "eth0", eth0, dnsmgr.IPConfigTypeBestDevice)
	withEth0 := s.hash(nil)
	assert.NotEqual(t, empty, withEth0)

	// Non DNS metadata does not affect the hash.
	eth0.Gateway = "192.168.1.254"
	eth0.Routes = []string{"0.0.0.0/0"}
	assert.Equal(t, withEth0, s.hash(nil))

	// The same content in another config hashes the same.
	s.remove(eth0)
	addConfigT(t, &s, "eth1", testIPConfig(dnsmgr.FamilyIPv4, "192.168.1.1"), dnsmgr.IPConfigTypeBestDevice)
	assert.Equal(t, withEth0, s.hash(nil))

	global := &dnsmgr.GlobalDNSConfig{Domains: map[string]*dnsmgr.GlobalDNSDomain{"*": {Servers: []string{"1.1.1.1"}}}}
	withGlobal := s.hash(global)
	assert.NotEqual(t, withEth0, withGlobal)
	global.Domains["*"].Servers = []string{"1.0.0.1"}
	withGlobal = s.hash(global)
	assert.NotEqual(t, withEth0, withGlobal)

	// Device configs are ignored while the global config is set.
	addConfigT(t, &s, "wlan0", testIPConfig(dnsmgr.FamilyIPv4, "10.0.0.1"), dnsmgr.IPConfigTypeDefault)
	assert.Equal(t, withGlobal, s.hash(global))
	assert.NotEqual(t, withEth0, s.hash(nil))
}

func TestSnapshotPluginInput(t *testing.T) {
	var s snapshot
	eth0 := testIPConfig(dnsmgr.FamilyIPv4, "192.168.1.1")
	wlan0 := testIPConfig(dnsmgr.FamilyIPv4, "10.0.0.1")
	tun6 := testIPConfig(dnsmgr.FamilyIPv6, "fd00::1")
	addConfigT(t, &s, "eth0", eth0, dnsmgr.IPConfigTypeBestDevice)
	addConfigT(t, &s, "wlan0", wlan0, dnsmgr.IPConfigTypeDefault)
	addConfigT(t, &s, "tun0", tun6, dnsmgr.IPConfigTypeVPN)

	in := s.pluginInput(nil, "host.corp.example")
	assert.Equal(t, []*dnsmgr.IPConfig{tun6}, in.VPN)
	assert.Equal(t, []*dnsmgr.IPConfig{eth0}, in.Devices)
	assert.Equal(t, []*dnsmgr.IPConfig{wlan0}, in.Others)
	assert.Equal(t, "host.corp.example", in.Hostname)
	assert.Equal(t, "tun0", in.Iface(tun6))

	global := &dnsmgr.GlobalDNSConfig{}
	in = s.pluginInput(global, "")
	assert.Empty(t, in.VPN)
	assert.Empty(t, in.Devices)
	assert.Empty(t, in.Others)
	assert.Same(t, global, in.Global)
}
