package imagequery

import "github.com/prometheus/client_golang/prometheus"

var (
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagequery",
			Name:      "upload_total",
			Help:      "Image hosting attempts by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	inferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagequery",
			Name:      "inference_total",
			Help:      "Inference calls by provider and result",
		},
		[]string{"provider", "result"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imagequery",
			Name:      "validation_failures_total",
			Help:      "Rejected requests by reason",
		},
		[]string{"reason"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imagequery",
			Name:      "stage_duration_seconds",
			Help:      "Duration of remote pipeline stages in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(uploadsTotal, inferenceTotal, validationFailures, stageDuration)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
