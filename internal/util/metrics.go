package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of applied order status transitions",
	}, []string{"from", "to"})

	OrderStatusRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_rejected_total",
		Help: "Total number of rejected order status transitions",
	}, []string{"reason"})

	AggregateSubjoinFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregate_subjoin_failures_total",
		Help: "Total number of order sub-joins replaced by a placeholder",
	}, []string{"join"})

	AssetResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_resolutions_total",
		Help: "Digital item resolutions by outcome",
	}, []string{"strategy"})

	AssetResolutionMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_resolution_mismatch_total",
		Help: "Orders where fewer assets resolved than digital items were purchased",
	})

	SignedLinksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signed_links_total",
		Help: "Secure link issuance by result",
	}, []string{"result"})

	SignedLinkLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signed_link_latency_seconds",
		Help:    "Latency of signed URL requests to object storage",
		Buckets: prometheus.DefBuckets,
	})

	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "downloads_total",
		Help: "Download triggers by outcome",
	}, []string{"result"})

	DeliveryEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_events_total",
		Help: "Delivery-ready events handled by the worker",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
