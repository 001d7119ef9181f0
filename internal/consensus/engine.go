package consensus

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"bftledger/internal/domain"
	"bftledger/internal/metrics"
	"bftledger/internal/types"

	"github.com/bits-and-blooms/bitset"
)

const (
	DefaultMaxRetries       = 5
	DefaultRoundTimeout     = time.Second
	DefaultFinalizedHistory = 256
)

// Host is what the engine needs from the node it runs inside.
type Host interface {
	ID() int
	PendingTransactions() []types.Transaction
	// ClearPendingTransactions drops batch from the pool. Anything queued
	// after the batch was taken stays for the next round.
	ClearPendingTransactions(batch []types.Transaction)
	SendMessageToAll(msg types.Message)
	Network() domain.Network
	RecordFinalized(proposalID string, batch []types.Transaction)
}

type Config struct {
	MaxRetries       int
	RoundTimeout     time.Duration
	FinalizedHistory int
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 1 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RoundTimeout <= 0 {
		c.RoundTimeout = DefaultRoundTimeout
	}
	if c.FinalizedHistory < 1 {
		c.FinalizedHistory = DefaultFinalizedHistory
	}
	return c
}

type roundState struct {
	stage        types.Stage
	proposalID   string
	proposerID   int
	transactions []types.Transaction
	prevotes     map[string]*bitset.BitSet
	precommits   map[string]*bitset.BitSet
	snapshot     types.SnapshotID
}

func newRoundState() roundState {
	return roundState{
		stage:      types.StageProposal,
		prevotes:   make(map[string]*bitset.BitSet),
		precommits: make(map[string]*bitset.BitSet),
	}
}

// Engine runs the PROPOSAL -> PREVOTE -> PRECOMMIT -> FINALIZED state
// machine for one node. Every entry point takes mu; nothing the engine calls
// on its collaborators may deliver back into it synchronously.
type Engine struct {
	mu sync.Mutex

	id     int
	host   Host
	ledger domain.Ledger
	clock  domain.Clock
	cfg    Config

	round roundState

	blockIndex      int
	leaderCursor    int
	currentLeaderID int
	retryCount      int
	quorumThreshold int
	byzantine       map[int]struct{}
	equivocate      bool

	finalized      map[string]struct{}
	finalizedOrder []string

	timerGen   uint64
	timerArmed bool

	roundsFinalized int
	timeouts        int
	rollbacks       int

	onStageChange func(from, to types.Stage)
}

func New(host Host, ledger domain.Ledger, clock domain.Clock, cfg Config) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		id:              host.ID(),
		host:            host,
		ledger:          ledger,
		clock:           clock,
		cfg:             cfg,
		round:           newRoundState(),
		leaderCursor:    -1,
		quorumThreshold: types.QuorumThreshold(host.Network().TotalParticipants()),
		byzantine:       make(map[int]struct{}),
		finalized:       make(map[string]struct{}),
	}

	metrics.ConsensusStage.WithLabelValues(strconv.Itoa(e.id)).Set(float64(e.round.stage))

	slog.Debug("consensus engine created",
		"node_id", e.id,
		"max_retries", cfg.MaxRetries,
		"round_timeout", cfg.RoundTimeout,
	)

	return e
}

func (e *Engine) StartConsensus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startConsensus()
}

func (e *Engine) OnReceiveMessage(msg types.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch msg.Phase {
	case types.PhaseProposal:
		e.handleProposal(msg)
	case types.PhasePrevote:
		e.handleVote(types.PhasePrevote, msg)
	case types.PhasePrecommit:
		e.handleVote(types.PhasePrecommit, msg)
	default:
		slog.Warn("dropping message with unknown phase",
			"node_id", e.id,
			"phase", msg.Phase,
			"from", msg.SenderID,
		)
	}
}

func (e *Engine) RollbackConsensus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollbackConsensus()
}

// AddPendingTransaction appends tx to the batch of the live round. Once a
// proposal id has been sent or adopted the batch is frozen, and tx waits in
// the host pool for the next round.
func (e *Engine) AddPendingTransaction(tx types.Transaction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round.proposalID != "" {
		slog.Debug("round batch frozen, deferring transaction",
			"node_id", e.id,
			"proposal_id", e.round.proposalID,
			"tx", tx.String(),
		)
		return
	}
	e.round.transactions = append(e.round.transactions, tx)
}

// MarkByzantine excludes id from every present and future tally.
func (e *Engine) MarkByzantine(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.byzantine[id] = struct{}{}
	if id >= 0 {
		for _, bs := range e.round.prevotes {
			bs.Clear(uint(id))
		}
		for _, bs := range e.round.precommits {
			bs.Clear(uint(id))
		}
	}

	slog.Info("sender marked byzantine", "node_id", e.id, "byzantine_id", id)
}

// SetEquivocate makes this engine vote for a forged proposal id. Used for
// fault injection only.
func (e *Engine) SetEquivocate(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.equivocate = on
}

// OnStageChange registers fn to observe every accepted stage transition.
func (e *Engine) OnStageChange(fn func(from, to types.Stage)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStageChange = fn
}

type Status struct {
	NodeID            int
	Stage             types.Stage
	ProposalID        string
	ProposerID        int
	LeaderID          int
	BlockIndex        int
	RetryCount        int
	QuorumThreshold   int
	Prevotes          int
	Precommits        int
	RoundTransactions int
	OwnsSnapshot      bool
	Byzantine         []int
	Equivocating      bool
	RoundsFinalized   int
	Timeouts          int
	Rollbacks         int
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	byz := make([]int, 0, len(e.byzantine))
	for id := range e.byzantine {
		byz = append(byz, id)
	}
	slices.Sort(byz)

	return Status{
		NodeID:            e.id,
		Stage:             e.round.stage,
		ProposalID:        e.round.proposalID,
		ProposerID:        e.round.proposerID,
		LeaderID:          e.currentLeaderID,
		BlockIndex:        e.blockIndex,
		RetryCount:        e.retryCount,
		QuorumThreshold:   e.quorumThreshold,
		Prevotes:          count(e.round.prevotes, e.round.proposalID),
		Precommits:        count(e.round.precommits, e.round.proposalID),
		RoundTransactions: len(e.round.transactions),
		OwnsSnapshot:      e.round.snapshot != 0,
		Byzantine:         byz,
		Equivocating:      e.equivocate,
		RoundsFinalized:   e.roundsFinalized,
		Timeouts:          e.timeouts,
		Rollbacks:         e.rollbacks,
	}
}

func (s Status) String() string {
	return fmt.Sprintf("stage=%s proposal=%q leader=%d block=%d retries=%d threshold=%d prevotes=%d precommits=%d batch=%d",
		s.Stage, s.ProposalID, s.LeaderID, s.BlockIndex, s.RetryCount,
		s.QuorumThreshold, s.Prevotes, s.Precommits, s.RoundTransactions)
}

func (e *Engine) advance(to types.Stage) error {
	from := e.round.stage
	if !from.CanTransition(to) {
		slog.Error("refusing stage transition",
			"node_id", e.id,
			"from", from,
			"to", to,
		)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if from == to {
		return nil
	}

	e.round.stage = to
	metrics.ConsensusStage.WithLabelValues(strconv.Itoa(e.id)).Set(float64(to))
	metrics.ConsensusStageTransitions.WithLabelValues(to.String()).Inc()

	if e.onStageChange != nil {
		e.onStageChange(from, to)
	}
	return nil
}

func (e *Engine) resetRound() {
	_ = e.advance(types.StageProposal)
	e.round = newRoundState()
}
