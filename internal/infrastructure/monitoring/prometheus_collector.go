// Package monitoring exposes session activity as Prometheus metrics.
package monitoring

import (
	"time"

	"peerchat/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	sessionsStartedTotal *prometheus.CounterVec
	sessionsActive       prometheus.Gauge
	sessionDuration      prometheus.Histogram

	messagesSentTotal     prometheus.Counter
	messagesReceivedTotal prometheus.Counter
	dataSentBytes         prometheus.Counter
	dataReceivedBytes     prometheus.Counter
	mediaTransferredBytes *prometheus.CounterVec

	connectedAt time.Time
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsStartedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peerchat_sessions_started_total",
			Help: "Total number of sessions started, by handshake role",
		}, []string{"role"}),

		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "peerchat_sessions_active",
			Help: "Whether a session currently occupies the connection slot",
		}),

		sessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "peerchat_session_duration_seconds",
			Help:    "Duration of connected sessions",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		messagesSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peerchat_messages_sent_total",
			Help: "Total number of data channel payloads sent",
		}),

		messagesReceivedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peerchat_messages_received_total",
			Help: "Total number of data channel payloads received",
		}),

		dataSentBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peerchat_data_sent_bytes_total",
			Help: "Total bytes sent over the data channel",
		}),

		dataReceivedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peerchat_data_received_bytes_total",
			Help: "Total bytes received over the data channel",
		}),

		mediaTransferredBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peerchat_media_transferred_bytes_total",
			Help: "Total media bytes transferred, by media class",
		}, []string{"kind"}),
	}
}

func (c *PrometheusCollector) SessionStarted(role domain.SessionRole) {
	c.sessionsStartedTotal.WithLabelValues(string(role)).Inc()
	c.sessionsActive.Set(1)
}

func (c *PrometheusCollector) SessionConnected() {
	c.connectedAt = time.Now()
}

func (c *PrometheusCollector) SessionClosed() {
	c.sessionsActive.Set(0)
	if !c.connectedAt.IsZero() {
		c.sessionDuration.Observe(time.Since(c.connectedAt).Seconds())
		c.connectedAt = time.Time{}
	}
}

func (c *PrometheusCollector) MessageSent(bytes int) {
	c.messagesSentTotal.Inc()
	c.dataSentBytes.Add(float64(bytes))
}

func (c *PrometheusCollector) MessageReceived(bytes int) {
	c.messagesReceivedTotal.Inc()
	c.dataReceivedBytes.Add(float64(bytes))
}

func (c *PrometheusCollector) MediaTransferred(kind domain.MediaKind, bytes int) {
	c.mediaTransferredBytes.WithLabelValues(string(kind)).Add(float64(bytes))
}
