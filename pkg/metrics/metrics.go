package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "podping"

// Metrics groups the collectors exported by the watcher.
type Metrics struct {
	OperationsTotal        prometheus.Counter
	ParseErrorsTotal       prometheus.Counter
	EventsTotal            *prometheus.CounterVec
	RejectionsTotal        *prometheus.CounterVec
	URLsPublishedTotal     prometheus.Counter
	PublishErrorsTotal     prometheus.Counter
	AuthorizedAccounts     prometheus.Gauge
	AccountRefreshFailures prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operation records consumed.",
		}),
		ParseErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_parse_errors_total",
			Help:      "Operation records that could not be read as custom_json.",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Podping events accepted by the decoder.",
		}, []string{"reason", "medium"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Candidate operations that produced no event.",
		}, []string{"rejection"}),
		URLsPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_published_total",
			Help:      "Feed URLs forwarded downstream.",
		}),
		PublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Events that failed to publish.",
		}),
		AuthorizedAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "authorized_accounts",
			Help:      "Accounts in the current trusted snapshot.",
		}),
		AccountRefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_refresh_failures_total",
			Help:      "Failed attempts to refresh the trusted account snapshot.",
		}),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.ParseErrorsTotal,
		m.EventsTotal,
		m.RejectionsTotal,
		m.URLsPublishedTotal,
		m.PublishErrorsTotal,
		m.AuthorizedAccounts,
		m.AccountRefreshFailures,
	)
	return m
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
