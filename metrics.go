package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appliedCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duralog_commands_applied_total",
		Help: "Commands applied and committed across all partitions.",
	})
	partitionApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duralog_partition_commands_applied_total",
		Help: "Commands applied and committed, per partition.",
	}, []string{"partition"})
	duplicateCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duralog_commands_duplicate_total",
		Help: "Commands dropped by the dedup ledger as redeliveries.",
	})
	storageRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duralog_apply_retries_total",
		Help: "Command applications retried after a storage error.",
	})
	ingressRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duralog_ingress_requests_total",
		Help: "Invocation submissions accepted on the ingress API.",
	})
	shuffleResends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duralog_shuffle_resends_total",
		Help: "Cross-partition commands resent while waiting for an ack.",
	})
)
