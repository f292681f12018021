package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// routeUnmatched labels requests no registered pattern matched.
const routeUnmatched = "unmatched"

var (
	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solindexor_api_requests_total",
			Help: "Status API requests by route pattern and response code",
		},
		[]string{"route", "code"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solindexor_api_request_duration_seconds",
			Help:    "Duration of status API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func observeRequest(route string, status int, duration time.Duration) {
	apiRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
