package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansSynthesized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scansim_scans_synthesized_total",
			Help: "Total number of constant-elevation scans synthesized.",
		},
		[]string{"backend"},
	)

	ScanDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scansim_scan_duration_seconds",
			Help:    "Wall time spent synthesizing one scan.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"backend"},
	)

	ScanSamples = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scansim_scan_samples",
			Help:    "Samples per synthesized scan.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	InjectionsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scansim_injections_applied_total",
			Help: "Total number of systematic effects injected.",
		},
		[]string{"effect"},
	)

	ConvolutionPixels = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scansim_convolution_pixels_total",
			Help: "Total boresight pixels processed by focal-plane convolution.",
		},
	)
)

func init() {
	prometheus.MustRegister(ScansSynthesized)
	prometheus.MustRegister(ScanDurationSeconds)
	prometheus.MustRegister(ScanSamples)
	prometheus.MustRegister(InjectionsApplied)
	prometheus.MustRegister(ConvolutionPixels)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
