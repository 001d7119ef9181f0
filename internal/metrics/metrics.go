package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConsensusStage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "stage",
		Help:      "Current round stage per node (0=proposal, 1=prevote, 2=precommit, 3=finalized)",
	}, []string{"node_id"})

	ConsensusStageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "stage_transitions_total",
		Help:      "Total stage transitions by target stage",
	}, []string{"stage"})

	ConsensusQuorumThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "quorum_threshold",
		Help:      "Last computed quorum threshold",
	})

	ConsensusProposalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "proposals_total",
		Help:      "Total proposals broadcast by elected leaders",
	})

	ConsensusVotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "votes_total",
		Help:      "Total votes received by phase and outcome",
	}, []string{"phase", "outcome"})

	ConsensusRoundsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "rounds_finalized_total",
		Help:      "Total rounds that reached FINALIZED",
	})

	ConsensusTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "timeouts_total",
		Help:      "Total round timeouts",
	})

	ConsensusRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "rollbacks_total",
		Help:      "Total round rollbacks",
	})

	ConsensusIdleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "consensus",
		Name:      "idle_total",
		Help:      "Total round starts skipped because no transactions were pending",
	})

	NetworkMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "network",
		Name:      "messages_total",
		Help:      "Per-recipient delivery outcomes by phase",
	}, []string{"phase", "outcome"})

	NetworkDeliveryDelay = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bftledger",
		Subsystem: "network",
		Name:      "delivery_delay_seconds",
		Help:      "Simulated delivery delay",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	NetworkParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bftledger",
		Subsystem: "network",
		Name:      "participants",
		Help:      "Registered participants",
	})

	LedgerTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "ledger",
		Name:      "transactions_total",
		Help:      "Transactions processed by the ledger by mode and outcome",
	}, []string{"mode", "outcome"})

	LedgerSnapshotDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bftledger",
		Subsystem: "ledger",
		Name:      "snapshot_depth",
		Help:      "Snapshots currently on the stack",
	})

	LedgerRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "ledger",
		Name:      "rollbacks_total",
		Help:      "Total snapshot restores",
	})

	MempoolPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bftledger",
		Subsystem: "mempool",
		Name:      "pending_transactions",
		Help:      "Transactions waiting in a node pool",
	}, []string{"node_id"})

	ChainBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "chain",
		Name:      "blocks_total",
		Help:      "Total blocks appended across all node chains",
	})

	WALWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "wal",
		Name:      "writes_total",
		Help:      "Total block journal writes",
	})

	WALWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bftledger",
		Subsystem: "wal",
		Name:      "write_duration_seconds",
		Help:      "Block journal write duration",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
	})

	SimEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "sim",
		Name:      "events_total",
		Help:      "Total events executed by the virtual clock",
	})

	SimVirtualTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bftledger",
		Subsystem: "sim",
		Name:      "virtual_time_seconds",
		Help:      "Current virtual clock reading",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "command",
		Name:      "total",
		Help:      "Total commands processed",
	}, []string{"type", "status"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bftledger",
		Subsystem: "command",
		Name:      "duration_seconds",
		Help:      "Command processing duration",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"type"})

	GRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bftledger",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Total gRPC requests",
	}, []string{"service", "method", "code"})

	GRPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bftledger",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "gRPC request duration",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"service", "method"})

	GRPCRequestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bftledger",
		Subsystem: "grpc",
		Name:      "requests_in_flight",
		Help:      "Control requests currently being handled",
	}, []string{"method"})
)
