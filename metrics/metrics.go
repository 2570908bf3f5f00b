package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "snapshots_total", Help: "Sanitized market snapshots published"},
		[]string{"symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Order placements by outcome"},
		[]string{"symbol", "outcome"},
	)
	GatewayVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gateway_verdicts_total", Help: "Pre-trade gateway verdicts"},
		[]string{"verdict"},
	)
	BreakerTrips = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "breaker_trips_total", Help: "Circuit breaker trips"},
	)
)

func init() {
	prometheus.MustRegister(SnapshotsTotal, OrdersTotal, GatewayVerdicts, BreakerTrips)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
