package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application counters.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	Signups          prometheus.Counter
	MessagesSent     prometheus.Counter
	FollowRequests   prometheus.Counter
	UnfollowRequests prometheus.Counter
	LikesToggled     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New registers the counters on a registry of their own, together with the
// process and Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warbler_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warbler_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		Signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_signups_total",
			Help: "Total number of successful signups",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_messages_total",
			Help: "Total number of successfully posted messages",
		}),
		FollowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_follows_total",
			Help: "Total number of successful follow requests",
		}),
		UnfollowRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warbler_unfollows_total",
			Help: "Total number of successful unfollow requests",
		}),
		LikesToggled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warbler_likes_toggled_total",
				Help: "Total number of like toggles by resulting state",
			},
			[]string{"state"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests,
		m.RequestDuration,
		m.Signups,
		m.MessagesSent,
		m.FollowRequests,
		m.UnfollowRequests,
		m.LikesToggled,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Like(liked bool) {
	state := "unliked"
	if liked {
		state = "liked"
	}
	m.LikesToggled.WithLabelValues(state).Inc()
}
