package observability

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chsync", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chsync", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	EventsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chsync", Name: "events_enqueued_total", Help: "Events accepted by the queue."},
		[]string{"type", "source"},
	)
	EventsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chsync", Name: "events_finished_total", Help: "Events reaching a terminal or retry outcome."},
		[]string{"type", "outcome"}, // outcome: completed|retried|failed|cancelled
	)
	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chsync", Name: "event_duration_seconds",
			Help:    "Wall time from lease to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"type"},
	)
	ChannelPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chsync", Name: "channel_pushes_total", Help: "Per-channel adapter call outcomes."},
		[]string{"channel", "capability", "status"}, // status: success|failed|skipped
	)
	ChannelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chsync", Name: "channel_push_duration_seconds",
			Help:    "Adapter call duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "capability"},
	)
	FXLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chsync", Name: "fx_lookups_total", Help: "FX rate lookups."},
		[]string{"status"}, // status: hit|fetched|error
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chsync", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		EventsEnqueued, EventsFinished, EventDuration,
		ChannelPushes, ChannelLatency,
		FXLookups, CacheEvents,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveEnqueue(eventType, source string) {
	EventsEnqueued.WithLabelValues(eventType, source).Inc()
}

func ObserveEventOutcome(eventType, outcome string, dur time.Duration) {
	EventsFinished.WithLabelValues(eventType, outcome).Inc()
	if dur > 0 {
		EventDuration.WithLabelValues(eventType).Observe(dur.Seconds())
	}
}

func ObserveChannelPush(channel, capability, status string, dur time.Duration) {
	ChannelPushes.WithLabelValues(channel, capability, status).Inc()
	ChannelLatency.WithLabelValues(channel, capability).Observe(dur.Seconds())
}

func ObserveFX(status string) { FXLookups.WithLabelValues(status).Inc() }

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
