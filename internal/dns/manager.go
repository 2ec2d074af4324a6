package dns

import (
	"time"

	"github.com/rs/zerolog"
)

// Options configures the OSConfigurator returned by NewOSConfigurator.
type Options struct {
	Paths          Paths
	ResolvconfPath string
	NetconfigPath  string
	HelperTimeout  time.Duration
	Logger         *zerolog.Logger
}

// NewOSConfigurator returns the OSConfigurator for mode.
func NewOSConfigurator(mode Mode, opts Options) OSConfigurator {
	logger := opts.Logger
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	switch mode {
	case ModeResolvconf:
		return newOpenresolvManager(helper{path: opts.ResolvconfPath, timeout: opts.HelperTimeout}, logger)
	case ModeNetconfig:
		return newNetconfigManager(helper{path: opts.NetconfigPath, timeout: opts.HelperTimeout}, logger)
	}
	return NewDirectManager(mode, opts.Paths, logger)
}
