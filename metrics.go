package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts served requests.
	// Labels:
	//   - route: mux path template, or "unmatched"
	//   - method
	//   - status: HTTP status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// RankingDuration measures candidate ranking, including corpus load.
	// Labels:
	//   - mode: "lexical" or "embedding"
	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_ranking_duration_seconds",
			Help:    "Duration of candidate ranking in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	// DisclosureRequestsTotal counts photo-reveal and contact-share actions.
	// Labels:
	//   - kind: "photo_reveal", "contact_share"
	//   - action: "send", "accept", "decline"
	DisclosureRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_disclosure_requests_total",
			Help: "Total number of disclosure request actions",
		},
		[]string{"kind", "action"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affinity_websocket_connections",
			Help: "Number of open notification websocket connections",
		},
	)
)
