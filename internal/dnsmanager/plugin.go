package dnsmanager

import (
	"strconv"

	"github.com/Control-D-Inc/dnsmgr"
	"github.com/Control-D-Inc/dnsmgr/internal/plugin"
)

func (m *Manager) setPluginLocked(p plugin.Plugin) {
	stop := make(chan struct{})
	m.plugin = p
	m.pluginStop = stop
	m.limiter.Reset()
	go m.forwardEvents(p, stop)
}

// clearPluginLocked stops the current plugin, if any, and cancels its pending restart.
func (m *Manager) clearPluginLocked() {
	m.stopRetryLocked()
	p := m.plugin
	if p == nil {
		return
	}
	close(m.pluginStop)
	m.plugin = nil
	m.pluginStop = nil
	if err := p.Stop(); err != nil {
		m.logger.Warn().Err(err).Msgf("could not stop DNS plugin %s", p.Name())
	}
}

// forwardEvents relays the events of p to the Manager until stop is closed.
func (m *Manager) forwardEvents(p plugin.Plugin, stop <-chan struct{}) {
	events := p.Events()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			select {
			case m.events <- pluginEvent{plugin: p, event: ev}:
			case <-stop:
				return
			}
		}
	}
}

func (m *Manager) handlePluginEvent(pe pluginEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := pe.plugin
	if m.closed || p != m.plugin {
		return
	}
	switch pe.event.Type {
	case plugin.EventFailed:
		if !p.IsCaching() {
			return
		}
		m.logger.Warn().Err(pe.event.Err).Msgf("DNS plugin %s failed, disabling caching", p.Name())
		m.updateAndLogLocked(true)
	case plugin.EventChildQuit:
		m.logger.Warn().Err(pe.event.Err).Msgf("DNS plugin %s child quit unexpectedly", p.Name())
		if m.limiter.Allow(m.clock.Now()) {
			statsPluginRestarts.WithLabelValues(p.Name(), strconv.FormatBool(false)).Inc()
			m.updateAndLogLocked(false)
			return
		}
		if m.retry != nil {
			return
		}
		delay := m.cfg.DNS.PluginRateLimit.Delay
		if delay <= 0 {
			delay = dnsmgr.DefaultPluginDelay
		}
		m.logger.Warn().Msgf("DNS plugin %s child respawning too fast, delaying update for %s", p.Name(), delay)
		m.retryGen++
		gen := m.retryGen
		m.retry = m.clock.AfterFunc(delay, func() { m.retryUpdate(gen) })
	}
}

// retryUpdate is the delayed commit scheduled when the plugin child quits too often.
func (m *Manager) retryUpdate(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.retry == nil || gen != m.retryGen {
		return
	}
	m.retry = nil
	if m.plugin != nil {
		statsPluginRestarts.WithLabelValues(m.plugin.Name(), strconv.FormatBool(true)).Inc()
	}
	m.updateAndLogLocked(false)
}

func (m *Manager) stopRetryLocked() {
	if m.retry == nil {
		return
	}
	m.retry.Stop()
	m.retry = nil
}
