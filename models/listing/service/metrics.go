package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	verdicts        *prometheus.CounterVec
	ingestLatency   prometheus.Histogram
	dedupSkipped    prometheus.Counter
	extractFailed   prometheus.Counter
	confirmFailures prometheus.Counter
}

// NewMetrics registers the listing metrics on reg. Registering twice on the
// same registry reuses the existing collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resaletix_duplicate_verdicts_total",
			Help: "Duplicate verdicts by checkpoint",
		}, []string{"checkpoint", "verdict"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resaletix_ingest_duration_seconds",
			Help:    "Time taken to ingest an uploaded ticket",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		dedupSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resaletix_duplicate_check_skipped_total",
			Help: "Uploads accepted without a duplicate check because the dedup service failed",
		}),
		extractFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resaletix_text_extraction_failures_total",
			Help: "Uploads whose text extraction failed",
		}),
		confirmFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resaletix_confirm_upstream_failures_total",
			Help: "Confirmations aborted by a storage or dedup service failure",
		}),
	}

	m.verdicts = register(reg, m.verdicts)
	m.ingestLatency = register(reg, m.ingestLatency)
	m.dedupSkipped = register(reg, m.dedupSkipped)
	m.extractFailed = register(reg, m.extractFailed)
	m.confirmFailures = register(reg, m.confirmFailures)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
