package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lowcarbon_api_requests_total",
		Help: "Read API requests by route and status code",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lowcarbon_api_request_duration_seconds",
		Help:    "Read API request latency by route",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"route"})

	rowsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lowcarbon_api_rows_served_total",
		Help: "Records returned by the read API per table",
	}, []string{"table"})
)
