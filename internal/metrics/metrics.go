// Package metrics exposes sensor read outcomes as Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/dht11-sensor/internal/dht"
	"github.com/sweeney/dht11-sensor/internal/gpio"
)

// Result labels for dht_reads_total.
const (
	ResultOK              = "ok"
	ResultCached          = "cached"
	ResultNoResponse      = "no_response"
	ResultTruncated       = "truncated_frame"
	ResultChecksum        = "checksum_mismatch"
	ResultLineBusy        = "line_busy"
	ResultLineUnavailable = "line_unavailable"
	ResultOther           = "other"
)

// Metrics implements dht.Observer.
type Metrics struct {
	registry    *prometheus.Registry
	reads       *prometheus.CounterVec
	duration    prometheus.Histogram
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// New creates collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht_reads_total",
			Help: "Sensor read calls by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dht_read_duration_seconds",
			Help:    "Duration of read attempts that drove the line.",
			Buckets: []float64{0.018, 0.019, 0.020, 0.021, 0.022, 0.023, 0.024, 0.025, 0.030},
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dht_temperature_celsius",
			Help: "Last good temperature reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dht_humidity_percent",
			Help: "Last good relative humidity reading.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dht_last_success_timestamp_seconds",
			Help: "Unix time of the last good reading.",
		}),
	}

	m.registry.MustRegister(
		m.reads,
		m.duration,
		m.temperature,
		m.humidity,
		m.lastSuccess,
	)
	return m
}

// ObserveRead records one read outcome.
func (m *Metrics) ObserveRead(o dht.Outcome) {
	if o.Cached {
		m.reads.WithLabelValues(ResultCached).Inc()
		return
	}

	m.duration.Observe(o.Duration.Seconds())
	m.reads.WithLabelValues(Result(o.Err)).Inc()
	if o.Err != nil {
		return
	}
	m.temperature.Set(float64(o.Reading.Temperature))
	m.humidity.Set(float64(o.Reading.Humidity))
	m.lastSuccess.Set(float64(o.Reading.CapturedAt.Unix()))
}

// Result maps a read error to its metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, dht.ErrNoResponse):
		return ResultNoResponse
	case errors.Is(err, dht.ErrTruncatedFrame):
		return ResultTruncated
	case errors.Is(err, dht.ErrChecksumMismatch):
		return ResultChecksum
	case errors.Is(err, gpio.ErrLineBusy):
		return ResultLineBusy
	case errors.Is(err, gpio.ErrLineUnavailable):
		return ResultLineUnavailable
	default:
		return ResultOther
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
