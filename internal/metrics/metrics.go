package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedConnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendconsole", Name: "feed_connects_total", Help: "Successful live feed connections",
	})
	FeedDisconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendconsole", Name: "feed_disconnects_total", Help: "Live feed closes, including failed dials",
	})
	FeedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendconsole", Name: "feed_messages_total", Help: "Live feed messages by parse result",
	}, []string{"result"})

	EnrollStageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attendconsole", Name: "enroll_stage_duration_seconds", Help: "Enrollment pipeline stage latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	EnrollRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendconsole", Name: "enroll_runs_total", Help: "Enrollment pipeline runs by result",
	}, []string{"result"})

	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendconsole", Name: "login_attempts_total", Help: "Login form submissions by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(FeedConnects, FeedDisconnects, FeedMessages, EnrollStageDuration, EnrollRuns, LoginAttempts)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveStage(stage string, d time.Duration) {
	EnrollStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
