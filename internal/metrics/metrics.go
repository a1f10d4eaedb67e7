// Package metrics provides Prometheus metrics for SafeKey.
//
// SafeKey is a one-shot CLI, so nothing is scraped. Counters live on a private
// registry and are flushed to a node_exporter textfile when configured.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safekey"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds every SafeKey collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Operations counts vault operations by operation, scheme and result.
	Operations *prometheus.CounterVec

	// EncryptionOperations counts encryption/decryption operations.
	EncryptionOperations *prometheus.CounterVec

	// ProbeFailures counts failed hardware probes by probe name.
	ProbeFailures *prometheus.CounterVec

	// TOTPVerifications counts one-time code checks by result.
	TOTPVerifications *prometheus.CounterVec

	// WalletsTotal tracks the number of indexed wallets.
	WalletsTotal prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of vault operations",
			},
			[]string{"operation", "scheme", "result"},
		),
		EncryptionOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "encryption_operations_total",
				Help:      "Total number of encryption/decryption operations",
			},
			[]string{"operation"}, // "encrypt" or "decrypt"
		),
		ProbeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_failures_total",
				Help:      "Total number of failed hardware probes",
			},
			[]string{"probe"},
		),
		TOTPVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "totp_verifications_total",
				Help:      "Total number of one-time code verifications",
			},
			[]string{"result"},
		),
		WalletsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "wallets_total",
				Help:      "Number of wallets in the local index",
			},
		),
	}
}

// ObserveOperation counts one vault operation.
func (m *Metrics) ObserveOperation(operation, scheme string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, scheme, result(err == nil)).Inc()
}

// ObserveEncryption counts one "encrypt" or "decrypt".
func (m *Metrics) ObserveEncryption(operation string) {
	if m == nil {
		return
	}
	m.EncryptionOperations.WithLabelValues(operation).Inc()
}

// ObserveProbeFailure counts one failed hardware probe.
func (m *Metrics) ObserveProbeFailure(probe string) {
	if m == nil {
		return
	}
	m.ProbeFailures.WithLabelValues(probe).Inc()
}

// ObserveTOTP counts one code verification.
func (m *Metrics) ObserveTOTP(ok bool) {
	if m == nil {
		return
	}
	m.TOTPVerifications.WithLabelValues(result(ok)).Inc()
}

// WriteToTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil {
		return errors.New("metrics not initialized")
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}
