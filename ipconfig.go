package dnsmgr

import (
	"errors"
	"hash"
	"net/netip"
	"strings"
)

// ErrInvalidConfigType is returned when a config is added with an unknown IPConfigType.
var ErrInvalidConfigType = errors.New("invalid ip config type")

// Family is the address family of an IPConfig.
type Family int

const (
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	}
	return "unknown"
}

// IPConfigType describes the role of an IPConfig contributed to the manager.
type IPConfigType int

const (
	IPConfigTypeDefault IPConfigType = iota
	IPConfigTypeBestDevice
	IPConfigTypeVPN
)

var ipConfigTypeNames = map[IPConfigType]string{
	IPConfigTypeDefault:    "default",
	IPConfigTypeBestDevice: "best-device",
	IPConfigTypeVPN:        "vpn",
}

func (t IPConfigType) String() string {
	if s, ok := ipConfigTypeNames[t]; ok {
		return s
	}
	return "invalid"
}

// Valid reports whether t is a known IPConfigType.
func (t IPConfigType) Valid() bool {
	_, ok := ipConfigTypeNames[t]
	return ok
}

// ParseIPConfigType returns the IPConfigType named by s.
func ParseIPConfigType(s string) (IPConfigType, error) {
	for t, name := range ipConfigTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, ErrInvalidConfigType
}

// IPConfig is the DNS relevant part of an interface IPv4 or IPv6 configuration.
//
// The manager never mutates an IPConfig, it is identified by pointer.
type IPConfig struct {
	Family      Family       `json:"family"`
	Nameservers []netip.Addr `json:"nameservers,omitempty"`
	Searches    []string     `json:"searches,omitempty"`
	Domains     []string     `json:"domains,omitempty"`
	DNSOptions  []string     `json:"dns_options,omitempty"`
	NISDomain   string       `json:"nis_domain,omitempty"`
	NISServers  []netip.Addr `json:"nis_servers,omitempty"`

	// Gateway and Routes are carried for collaborators only, they never
	// contribute to the merged resolver config nor to its hash.
	Gateway string   `json:"gateway,omitempty"`
	Routes  []string `json:"routes,omitempty"`
}

// WriteHash writes the DNS relevant content of c to h.
func (c *IPConfig) WriteHash(h hash.Hash) {
	if c == nil {
		return
	}
	h.Write([]byte{byte(c.Family)})
	for _, ns := range c.Nameservers {
		hashString(h, ns.String())
	}
	hashEnd(h)
	for _, s := range c.Domains {
		hashString(h, s)
	}
	hashEnd(h)
	for _, s := range c.Searches {
		hashString(h, s)
	}
	hashEnd(h)
	for _, s := range c.DNSOptions {
		hashString(h, s)
	}
	hashEnd(h)
	hashString(h, c.NISDomain)
	for _, ns := range c.NISServers {
		hashString(h, ns.String())
	}
	hashEnd(h)
}

func hashString(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}

func hashEnd(h hash.Hash) {
	h.Write([]byte{0xff})
}
