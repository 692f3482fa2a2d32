package observ

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes recorded on ChannelResolutions.
const (
	ResolutionCreated    = "created"
	ResolutionExisting   = "existing"
	ResolutionNotMatched = "not_matched"
	ResolutionError      = "error"
)

// Metrics holds the chat collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	ChannelResolutions *prometheus.CounterVec
	MessagesSent       *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	SessionSetup       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChannelResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchline",
			Name:      "channel_resolutions_total",
			Help:      "Match-gated channel resolutions by outcome.",
		}, []string{"result"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchline",
			Name:      "messages_sent_total",
			Help:      "Messages sent from chat sessions by outcome.",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matchline",
			Name:      "chat_sessions_active",
			Help:      "Chat sessions currently in the ready state.",
		}),
		SessionSetup: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchline",
			Name:      "chat_session_setup_seconds",
			Help:      "Time from open to ready (or failure).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	reg.MustRegister(m.ChannelResolutions, m.MessagesSent, m.ActiveSessions, m.SessionSetup)
	return m
}

func (m *Metrics) Resolution(result string) {
	if m == nil {
		return
	}
	m.ChannelResolutions.WithLabelValues(result).Inc()
}

func (m *Metrics) MessageSent(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.MessagesSent.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionOpened(seconds float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionSetup.WithLabelValues("ok").Observe(seconds)
}

func (m *Metrics) SessionFailed(seconds float64) {
	if m == nil {
		return
	}
	m.SessionSetup.WithLabelValues("error").Observe(seconds)
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
