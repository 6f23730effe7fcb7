package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeDetected       = "detected"
	OutcomeNotDetected    = "not_detected"
	OutcomeDecodeError    = "decode_error"
	OutcomeInferenceError = "inference_error"
)

var (
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lc_classifications_total",
			Help: "Classification requests by outcome",
		},
		[]string{"outcome"},
	)

	DetectorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lc_detector_latency_seconds",
			Help:    "Time spent waiting on the detector",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"detector"},
	)

	HistoryAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lc_history_appends_total",
			Help: "Entries appended to session histories",
		},
	)

	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lc_model_loaded",
			Help: "1 when the detector is loaded and reachable",
		},
	)
)
