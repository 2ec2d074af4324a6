// Copyright (c) 2021 Tailscale Inc & AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dns

import (
	"bytes"

	"github.com/rs/zerolog"
)

// DefaultResolvconfPath is the default location of the resolvconf program.
const DefaultResolvconfPath = "/sbin/resolvconf"

// openresolvManager manages DNS configuration using the `resolvconf` program.
type openresolvManager struct {
	helper helper
	logger *zerolog.Logger
}

func newOpenresolvManager(h helper, logger *zerolog.Logger) *openresolvManager {
	if h.path == "" {
		h.path = DefaultResolvconfPath
	}
	return &openresolvManager{helper: h, logger: logger}
}

func (m *openresolvManager) deleteConfig() error {
	m.logger.Debug().Msgf("removing %s interface config with %s", Identity, m.helper.path)
	return m.helper.run([]string{"-d", Identity}, nil)
}

func (m *openresolvManager) SetDNS(config OSConfig) error {
	if len(config.Nameservers) == 0 && len(config.SearchDomains) == 0 {
		return m.deleteConfig()
	}

	var stdin bytes.Buffer
	if err := writeResolvConf(&stdin, config); err != nil {
		return err
	}
	m.logger.Debug().Msgf("writing %s interface config with %s", Identity, m.helper.path)
	return m.helper.run([]string{"-a", Identity}, stdin.Bytes())
}

func (m *openresolvManager) Mode() Mode {
	return ModeResolvconf
}
