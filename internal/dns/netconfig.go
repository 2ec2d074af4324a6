package dns

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultNetconfigPath is the default location of the SUSE netconfig program.
const DefaultNetconfigPath = "/sbin/netconfig"

// netconfigManager manages DNS configuration using the netconfig program.
type netconfigManager struct {
	helper helper
	logger *zerolog.Logger
}

func newNetconfigManager(h helper, logger *zerolog.Logger) *netconfigManager {
	if h.path == "" {
		h.path = DefaultNetconfigPath
	}
	return &netconfigManager{helper: h, logger: logger}
}

func (m *netconfigManager) SetDNS(cfg OSConfig) error {
	var stdin bytes.Buffer
	writeNetconfigValue(&stdin, "INTERFACE", Identity)
	writeNetconfigValue(&stdin, "DNSSEARCH", strings.Join(cfg.SearchDomains, " "))
	writeNetconfigValue(&stdin, "DNSSERVERS", strings.Join(cfg.Nameservers, " "))
	writeNetconfigValue(&stdin, "NISDOMAIN", cfg.NISDomain)
	writeNetconfigValue(&stdin, "NISSERVERS", strings.Join(cfg.NISServers, " "))

	m.logger.Debug().Msgf("spawning %s", m.helper.path)
	return m.helper.run([]string{"modify", "--service", Identity}, stdin.Bytes())
}

func (m *netconfigManager) Mode() Mode {
	return ModeNetconfig
}

// writeNetconfigValue writes a KEY='value' line, skipping empty values.
func writeNetconfigValue(b *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s='%s'\n", key, value)
}
