package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_created_total",
		Help: "Total direct messages stored.",
	})
	ImageMessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_image_messages_created_total",
		Help: "Stored messages whose content is an inline image.",
	})
	MessagesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_deleted_total",
		Help: "Total direct messages deleted by their sender.",
	})
	ConversationReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_conversation_reads_total",
		Help: "Conversation list requests (polling included).",
	})

	WSConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_conns",
		Help: "Current websocket push connections.",
	})
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_events_dropped_total",
		Help: "Push events dropped because a subscriber queue was full.",
	})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func Register() {
	prometheus.MustRegister(
		MessagesCreated, ImageMessagesCreated, MessagesDeleted, ConversationReads,
		WSConns, EventsDropped,
		HTTPDuration,
	)
}

func ObserveHTTP(method, route string, status int, took time.Duration) {
	HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(took.Seconds())
}
