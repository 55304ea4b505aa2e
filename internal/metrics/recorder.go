// Package metrics exposes sync runs and reconciliation results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
	"github.com/mtlprog/treasury/internal/ledgersync"
)

const namespace = "treasury"

var networkStatuses = []domain.NetworkStatus{domain.StatusOK, domain.StatusStale, domain.StatusError}

// Recorder collects treasury metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	networkFailures *prometheus.CounterVec
	pricesUpdated   prometheus.Gauge

	networkStatus    *prometheus.GaugeVec
	networkEquityUSD *prometheus.GaugeVec
	totalUSD         *prometheus.GaugeVec
	priceStale       prometheus.Gauge
	warnings         prometheus.Gauge
}

// NewRecorder creates a Recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs by result",
		},
		[]string{"result"},
	)
	r.syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of sync runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)
	r.networkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "network_failures_total",
			Help:      "Failed per-network rebuilds",
		},
		[]string{"network"},
	)
	r.pricesUpdated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "prices_updated",
			Help:      "Prices saved by the last sync run",
		},
	)
	r.networkStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "status",
			Help:      "1 for the current status of a network, 0 for the others",
		},
		[]string{"network", "status"},
	)
	r.networkEquityUSD = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "equity_usd",
			Help:      "USD equity of a network",
		},
		[]string{"network"},
	)
	r.totalUSD = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "combined",
			Name:      "usd",
			Help:      "Combined USD totals by kind (reserve, liability, equity)",
		},
		[]string{"kind"},
	)
	r.priceStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "combined",
			Name:      "price_stale",
			Help:      "1 when the last report used at least one stale price",
		},
	)
	r.warnings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "combined",
			Name:      "warnings",
			Help:      "Warnings in the last report",
		},
	)

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.syncRuns, r.syncDuration, r.networkFailures, r.pricesUpdated,
		r.networkStatus, r.networkEquityUSD, r.totalUSD, r.priceStale, r.warnings,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveSync implements ledgersync.Observer.
func (r *Recorder) ObserveSync(res ledgersync.Result, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.syncRuns.WithLabelValues(result).Inc()
	if !res.StartedAt.IsZero() && !res.FinishedAt.IsZero() {
		r.syncDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	}
	for _, network := range res.Failed {
		r.networkFailures.WithLabelValues(network).Inc()
	}
	r.pricesUpdated.Set(float64(res.PricesUpdated))
}

// ObserveOverview implements worker.OverviewObserver.
func (r *Recorder) ObserveOverview(overview domain.GlobalOverview) {
	for _, n := range overview.Networks {
		for _, status := range networkStatuses {
			v := 0.0
			if n.Status == status {
				v = 1
			}
			r.networkStatus.WithLabelValues(n.NetworkName, string(status)).Set(v)
		}
		r.networkEquityUSD.WithLabelValues(n.NetworkName).Set(usdFloat(n.USDEquity))
	}

	s := overview.Combined.USDSummary
	r.totalUSD.WithLabelValues("reserve").Set(usdFloat(s.TotalReserveUSD))
	r.totalUSD.WithLabelValues("liability").Set(usdFloat(s.TotalLiabilityUSD))
	r.totalUSD.WithLabelValues("equity").Set(usdFloat(s.TotalEquityUSD))

	stale := 0.0
	if s.PriceStatus == domain.PriceStale {
		stale = 1
	}
	r.priceStale.Set(stale)
	r.warnings.Set(float64(len(overview.Combined.Warnings)))
}

func usdFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
