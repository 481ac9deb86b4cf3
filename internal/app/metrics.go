package app

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/l9g/oidc-info/internal/websession"
	"github.com/l9g/oidc-info/session"
)

const metricsNamespace = "oidc_info"

type metrics struct {
	logins      *prometheus.CounterVec
	backchannel *prometheus.CounterVec
	handler     http.Handler
}

// newMetrics registers the app's collectors with reg. A nil reg gets a
// private registry.
func newMetrics(reg prometheus.Registerer, g prometheus.Gatherer, store *session.Store, sessions *websession.Manager) (*metrics, error) {
	const op = "app.newMetrics"
	if reg == nil || g == nil {
		r := prometheus.NewRegistry()
		reg, g = r, r
	}
	m := &metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Completed login callbacks by result.",
		}, []string{"result"}),
		backchannel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backchannel_logouts_total",
			Help:      "Received back-channel logout notifications by result.",
		}, []string{"result"}),
		handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{}),
	}
	collectors := []prometheus.Collector{
		m.logins,
		m.backchannel,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "correlation_entries",
			Help:      "Live provider session correlation entries.",
		}, func() float64 { return float64(store.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "local_sessions",
			Help:      "Live local web sessions.",
		}, func() float64 { return float64(sessions.Len()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return m, nil
}
