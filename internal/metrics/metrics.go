// Package metrics provides Prometheus metrics for the password vault.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pwmvault"

var (
	// HTTPRequestsTotal counts daemon requests. The caller label is
	// "manager" or "app".
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status", "caller"},
	)

	// HTTPRequestDuration tracks request latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTPRequestsInFlight tracks the number of in-flight HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// UnlockAttempts counts unlock outcomes: success, wrong_passphrase,
	// cancelled, created and error.
	UnlockAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlock_attempts_total",
			Help:      "Total number of vault unlock attempts by result",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks the number of unlocked identities.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently unlocked vaults",
		},
	)

	// EncryptionOperations counts envelope encrypt and decrypt operations.
	EncryptionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encryption_operations_total",
			Help:      "Total number of envelope encryption operations",
		},
		[]string{"operation"},
	)

	// RecordOperations counts record operations by kind and result.
	RecordOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_operations_total",
			Help:      "Total number of record operations",
		},
		[]string{"operation", "result"},
	)

	// VaultFiles tracks the number of vault files on disk.
	VaultFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_files",
			Help:      "Number of identities with a vault file",
		},
	)
)
