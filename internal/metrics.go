package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// cycle results recorded in the cycles counter.
const (
	resultExisting         = "existing"
	resultCreated          = "created"
	resultReminted         = "reminted"
	resultNotFound         = "not_found"
	resultRetriesExhausted = "retries_exhausted"
	resultError            = "error"
)

// metrics exposes the reconciler's progress to the administrator.
type metrics struct {
	registry          *prometheus.Registry
	cycles            *prometheus.CounterVec
	accountsCreated   prometheus.Counter
	tokensMinted      prometheus.Counter
	secretWrites      *prometheus.CounterVec
	connectionRetries prometheus.Counter
	lastSuccess       prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grafana_token_sidecar",
		Subsystem: "reconcile",
		Name:      "cycles_total",
		Help:      "Total number of reconcile cycles by result",
	}, []string{"result"})
	registry.MustRegister(cycles)
	accountsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grafana_token_sidecar",
		Subsystem: "grafana",
		Name:      "service_accounts_created_total",
		Help:      "Total number of service accounts created",
	})
	registry.MustRegister(accountsCreated)
	tokensMinted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grafana_token_sidecar",
		Subsystem: "grafana",
		Name:      "tokens_minted_total",
		Help:      "Total number of service account tokens minted",
	})
	registry.MustRegister(tokensMinted)
	secretWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grafana_token_sidecar",
		Subsystem: "kubernetes",
		Name:      "secret_writes_total",
		Help:      "Total number of token secret writes by operation",
	}, []string{"operation"})
	registry.MustRegister(secretWrites)
	connectionRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grafana_token_sidecar",
		Subsystem: "grafana",
		Name:      "connection_retries_total",
		Help:      "Total number of retries after failing to connect to grafana",
	})
	registry.MustRegister(connectionRetries)
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "grafana_token_sidecar",
		Subsystem: "reconcile",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last cycle that completed without error",
	})
	registry.MustRegister(lastSuccess)

	return &metrics{
		registry:          registry,
		cycles:            cycles,
		accountsCreated:   accountsCreated,
		tokensMinted:      tokensMinted,
		secretWrites:      secretWrites,
		connectionRetries: connectionRetries,
		lastSuccess:       lastSuccess,
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *metrics) observeCycle(result string) {
	m.cycles.WithLabelValues(result).Inc()
	switch result {
	case resultExisting, resultCreated, resultReminted:
		m.lastSuccess.SetToCurrentTime()
	}
}
