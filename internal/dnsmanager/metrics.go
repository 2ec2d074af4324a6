package dnsmanager

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsLabelMode    = "mode"
	metricsLabelResult  = "result"
	metricsLabelPlugin  = "plugin"
	metricsLabelDelayed = "delayed"
)

// statsCommits counts resolver config commits.
var statsCommits = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dnsmgr_commits_total",
	Help: "Total number of resolver config commits.",
}, []string{metricsLabelMode, metricsLabelResult})

// statsPluginRestarts counts plugin child respawns.
var statsPluginRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dnsmgr_plugin_restarts_total",
	Help: "Total number of DNS plugin restarts after the child quit.",
}, []string{metricsLabelPlugin, metricsLabelDelayed})

// statsConfigs is the number of IP configs currently tracked.
var statsConfigs = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "dnsmgr_configs",
	Help: "Number of IP configs contributing DNS information.",
})

// Collectors returns the prometheus collectors of the dns manager.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{statsCommits, statsPluginRestarts, statsConfigs}
}
