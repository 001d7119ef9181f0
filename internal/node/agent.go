package node

import (
	"fmt"
	"log/slog"

	"bftledger/internal/chain"
	"bftledger/internal/consensus"
	"bftledger/internal/domain"
	"bftledger/internal/mempool"
	"bftledger/internal/types"
)

// Agent is one participant: it owns an engine, a pool and a chain, and
// shares the network and ledger with every other agent of its cluster.
type Agent struct {
	id      int
	network domain.Network
	ledger  domain.Ledger
	pool    *mempool.Pool
	chain   *chain.Blockchain
	engine  *consensus.Engine
}

type AgentConfig struct {
	Consensus   consensus.Config
	MempoolSize int
}

func NewAgent(id int, net domain.Network, ledger domain.Ledger, clock domain.Clock, journal chain.Journal, cfg AgentConfig) *Agent {
	a := &Agent{
		id:      id,
		network: net,
		ledger:  ledger,
		pool:    mempool.New(id, cfg.MempoolSize),
		chain:   chain.New(journal),
	}
	a.engine = consensus.New(a, ledger, clock, cfg.Consensus)
	return a
}

func (a *Agent) ID() int { return a.id }

func (a *Agent) Receive(msg types.Message) {
	a.engine.OnReceiveMessage(msg)
}

func (a *Agent) PendingTransactions() []types.Transaction {
	return a.pool.Pending()
}

func (a *Agent) ClearPendingTransactions(batch []types.Transaction) {
	a.pool.Remove(batch)
}

func (a *Agent) SendMessageToAll(msg types.Message) {
	a.network.Broadcast(msg)
}

func (a *Agent) Network() domain.Network {
	return a.network
}

// RecordFinalized appends the committed batch to this agent's chain.
func (a *Agent) RecordFinalized(proposalID string, batch []types.Transaction) {
	b, err := a.chain.Append(batch)
	if err != nil {
		slog.Error("failed to record finalized batch",
			"node_id", a.id,
			"proposal_id", proposalID,
			"error", err,
		)
		return
	}
	slog.Debug("recorded block",
		"node_id", a.id,
		"proposal_id", proposalID,
		"index", b.Index,
		"hash", b.Hash,
	)
}

func (a *Agent) ProposeBlock() {
	a.engine.StartConsensus()
}

func (a *Agent) RollbackConsensus() {
	a.engine.RollbackConsensus()
}

// CreateTransaction validates a transfer from this agent and queues it for
// the next round. Balances are never touched here.
func (a *Agent) CreateTransaction(receiverID int, amount float64) (types.Transaction, error) {
	tx := types.NewTransaction(a.id, receiverID, amount)

	if err := tx.Validate(); err != nil {
		return tx, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	if !a.network.IsRegistered(receiverID) {
		return tx, fmt.Errorf("%w: receiver %d", ErrUnknownNode, receiverID)
	}
	if !a.ledger.CanProcessTransaction(tx) {
		return tx, fmt.Errorf("%w: node %d has %v, needs %v",
			ErrInsufficientBalance, a.id, a.ledger.GetBalance(a.id), amount)
	}
	if err := a.pool.Add(tx); err != nil {
		return tx, err
	}

	a.engine.AddPendingTransaction(tx)

	slog.Info("transaction queued", "node_id", a.id, "tx", tx.String())
	return tx, nil
}

type AgentStatus struct {
	NodeID      int
	ChainLength int
	LatestHash  string
	Balance     float64
	Pending     []types.Transaction
	Consensus   consensus.Status
}

func (a *Agent) Status() AgentStatus {
	return AgentStatus{
		NodeID:      a.id,
		ChainLength: a.chain.Len(),
		LatestHash:  a.chain.Latest().Hash,
		Balance:     a.ledger.GetBalance(a.id),
		Pending:     a.pool.Pending(),
		Consensus:   a.engine.Status(),
	}
}

func (a *Agent) Chain() *chain.Blockchain {
	return a.chain
}

func (a *Agent) Engine() *consensus.Engine {
	return a.engine
}
