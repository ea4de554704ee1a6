package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SlotClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futsal_slot_claims_total",
		Help: "Slot claim attempts by result",
	}, []string{"result"})

	BookingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futsal_bookings_created_total",
		Help: "Bookings written by reservation path",
	}, []string{"path"})

	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futsal_gateway_callbacks_total",
		Help: "Gateway callbacks by outcome",
	}, []string{"outcome"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "futsal_gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	IntentsSweptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futsal_intents_swept_total",
		Help: "Stale payment intents handled by the sweep",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "futsal_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	MessagesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "futsal_messages_processed_total",
		Help: "Consumed NATS messages by subject and result",
	}, []string{"subject", "result"})
)
