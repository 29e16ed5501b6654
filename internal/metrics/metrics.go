// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssignmentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assignments_created_total",
			Help: "Total number of assignments created",
		},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of submissions received",
		},
		[]string{"is_late"},
	)

	GradesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grades_recorded_total",
			Help: "Total number of submissions graded",
		},
	)

	MarksHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "submission_marks",
			Help:    "Distribution of awarded marks",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
