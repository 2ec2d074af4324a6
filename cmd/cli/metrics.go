package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/prom2json"

	"github.com/Control-D-Inc/dnsmgr/internal/dnsmanager"
)

const (
	metricsPath     = "/metrics"
	metricsJSONPath = "/metrics/json"
)

// newMetricsRegistry returns a registry holding the runtime and dns manager stats.
func newMetricsRegistry() *prometheus.Registry {
	statsVersion.Reset()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(collectors.WithGoCollectorRuntimeMetrics(collectors.MetricsAll)),
		statsVersion,
		statsTimeStart,
	)
	reg.MustRegister(dnsmanager.Collectors()...)
	statsVersion.WithLabelValues(commit, runtime.Version(), curVersion()).Inc()
	statsTimeStart.Set(float64(time.Now().Unix()))
	return reg
}

// metricsHandler serves reg in the Prometheus text format and as prom2json families.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Timeout:           10 * time.Second,
	}))
	mux.Handle("GET "+metricsJSONPath, jsonResponse(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		families, err := gatherFamilies(reg)
		if err != nil {
			mainLog.Load().Warn().Err(err).Msg("could not gather metrics")
			http.Error(w, "could not gather metrics", http.StatusInternalServerError)
			return
		}
		if err := json.NewEncoder(w).Encode(families); err != nil {
			mainLog.Load().Warn().Err(err).Msg("could not marshal metrics result")
		}
	})))
	return mux
}

func gatherFamilies(g prometheus.Gatherer) ([]*prom2json.Family, error) {
	mfs, done, err := prometheus.ToTransactionalGatherer(g).Gather()
	defer done()
	if err != nil {
		return nil, err
	}
	families := make([]*prom2json.Family, 0, len(mfs))
	for _, mf := range mfs {
		families = append(families, prom2json.NewFamily(mf))
	}
	return families, nil
}

// runMetricsServer serves metrics on the configured listener until ctx is done.
func (p *prog) runMetricsServer(ctx context.Context) {
	addr := p.cfg.Service.MetricsListener
	if addr == "" {
		return
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		mainLog.Load().Warn().Err(err).Msg("could not start metrics server")
		return
	}
	srv := &http.Server{Handler: metricsHandler(newMetricsRegistry())}
	mainLog.Load().Debug().Msgf("starting metrics server on: %s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLog.Load().Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Load().Warn().Err(err).Msg("could not stop metrics server")
	}
}
