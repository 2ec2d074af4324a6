package plugin

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/dns"
)

// Unbound asks dnssec-trigger to reconfigure a locally running unbound.
// The unbound daemon itself is not supervised by dnsmgr.
type Unbound struct {
	path    string
	timeout time.Duration
	logger  *zerolog.Logger
	events  chan Event
}

// NewUnbound returns the unbound plugin. The script is killed if it runs
// longer than timeout, or dns.DefaultHelperTimeout if timeout is not positive.
func NewUnbound(cfg dnsmgr.UnboundConfig, timeout time.Duration, logger *zerolog.Logger) *Unbound {
	path := cfg.Path
	if path == "" {
		path = dnsmgr.DefaultUnboundHelper
	}
	if timeout <= 0 {
		timeout = dns.DefaultHelperTimeout
	}
	return &Unbound{path: path, timeout: timeout, logger: logger, events: make(chan Event, eventsBufferSize)}
}

func (u *Unbound) Name() string { return "unbound" }

func (u *Unbound) IsCaching() bool { return true }

func (u *Unbound) Events() <-chan Event { return u.events }

// Update runs the dnssec-trigger script, which reads the current connection
// state on its own.
func (u *Unbound) Update(ctx context.Context, in Input) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, u.path, "--async", "--update")
	cmd.WaitDelay = u.timeout
	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("running %s: timed out after %s", cmd, u.timeout)
	}
	if err != nil {
		return fmt.Errorf("running %s: %w: %s", cmd, err, strings.TrimSpace(string(out)))
	}
	u.logger.Debug().Msgf("%s succeeded", cmd)
	return nil
}

func (u *Unbound) Stop() error { return nil }
