package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/speedtest"
)

// Outcome labels beyond the dns.Action values.
const (
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
)

// Metrics holds the counters of one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Outcomes      *prometheus.CounterVec
	BestLatency   prometheus.Gauge
	BestSpeed     prometheus.Gauge
	LastRunSecond prometheus.Gauge
}

// New registers the run metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfst_ddns_records_total",
				Help: "DNS records processed, by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		BestLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cfst_ddns_best_ip_latency_milliseconds",
			Help: "Average latency of the selected IP as measured by the speed test.",
		}),
		BestSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cfst_ddns_best_ip_download_megabytes_per_second",
			Help: "Download speed of the selected IP as measured by the speed test.",
		}),
		LastRunSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cfst_ddns_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	m.registry.MustRegister(m.Outcomes, m.BestLatency, m.BestSpeed, m.LastRunSecond)
	return m
}

// IncOutcome counts one processed record.
func (m *Metrics) IncOutcome(provider, outcome string) {
	if provider == "" {
		provider = "none"
	}
	m.Outcomes.WithLabelValues(provider, outcome).Inc()
}

// ObserveBest records the measurements of the selected IP.
func (m *Metrics) ObserveBest(r speedtest.Result) {
	m.BestLatency.Set(r.AvgLatencyMS)
	m.BestSpeed.Set(r.DownloadSpeed)
}

// Finish stamps the end of the run.
func (m *Metrics) Finish(now time.Time) {
	m.LastRunSecond.Set(float64(now.Unix()))
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the text exposition format for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Gatherer()); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
