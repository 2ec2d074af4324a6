package cli

import "github.com/prometheus/client_golang/prometheus"

// statsVersion represent dnsmgr version.
var statsVersion = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dnsmgr_build_info",
	Help: "Version of dnsmgr process.",
}, []string{"gitref", "goversion", "version"})

// statsTimeStart represents start time of dnsmgr service.
var statsTimeStart = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "dnsmgr_time_seconds",
	Help: "Start time of the dnsmgr process since unix epoch in seconds.",
})
