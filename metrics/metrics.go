// Package metrics exposes Prometheus collectors for queue depth and
// capacity, admitted and settled request counts, key-server set size,
// and migration state. No server is started here:
// this module never listens on a socket (§5 [EXPANSION]); an external
// process scrapes the default registry these collectors register into.
//
// Grounded on pkg/metrics/metrics.go in cuemby-warren: package-level
// prometheus.NewGaugeVec/NewCounterVec variables registered once in
// init(), one block per subsystem, reused here for the queue/migration/
// aggregator subsystems instead of warren's node/service/raft ones.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueueLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ssmgr_queue_length",
			Help: "Current number of outstanding requests, by service kind",
		},
		[]string{"kind"},
	)

	QueueCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ssmgr_queue_capacity",
			Help: "Configured capacity, by service kind",
		},
		[]string{"kind"},
	)

	RequestsAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssmgr_requests_admitted_total",
			Help: "Total number of requests admitted, by service kind",
		},
		[]string{"kind"},
	)

	RequestsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssmgr_requests_confirmed_total",
			Help: "Total number of requests settled without a key-server error report (Confirmed or Impossible), by service kind",
		},
		[]string{"kind"},
	)

	RequestsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssmgr_requests_failed_total",
			Help: "Total number of requests removed by a key-server error report, by service kind",
		},
		[]string{"kind"},
	)

	MigrationEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ssmgr_migration_epoch",
			Help: "Current value of current_set_change_block",
		},
	)

	MigrationsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ssmgr_migrations_in_progress",
			Help: "1 while a migration is in progress, 0 otherwise",
		},
	)

	KeyServerSetSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ssmgr_key_server_set_size",
			Help: "Number of key servers, by set (current, new, migration)",
		},
		[]string{"set"},
	)
)

func init() {
	prometheus.MustRegister(
		QueueLength,
		QueueCapacity,
		RequestsAdmitted,
		RequestsConfirmed,
		RequestsFailed,
		MigrationEpoch,
		MigrationsInProgress,
		KeyServerSetSize,
	)
}

// Kind labels, matching servicequeue's service kinds.
const (
	KindServerKeyGeneration       = "server_key_generation"
	KindServerKeyRetrieval        = "server_key_retrieval"
	KindDocumentKeyStore          = "document_key_store"
	KindDocumentKeyShadowRetrieval = "document_key_shadow_retrieval"
)
