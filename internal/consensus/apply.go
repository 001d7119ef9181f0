package consensus

import (
	"log/slog"

	"bftledger/internal/metrics"
	"bftledger/internal/types"
)

// finalizeConsensus commits this node's own round batch. On a follower that
// batch comes from its local pool, not from the proposer, so the committed
// content is not covered by the proposal id that was voted on. The ledger is
// shared and each node commits only its own pool, which keeps every
// transaction applied exactly once.
func (e *Engine) finalizeConsensus() {
	e.disarmTimer()
	if err := e.advance(types.StageFinalized); err != nil {
		return
	}

	pid := e.round.proposalID
	committed := e.commit(e.round.transactions)

	e.releaseSnapshot()

	e.host.ClearPendingTransactions(e.round.transactions)
	e.rememberFinalized(pid)
	e.host.RecordFinalized(pid, committed)

	e.retryCount = 0
	e.roundsFinalized++
	metrics.ConsensusRoundsFinalized.Inc()

	slog.Info("round finalized",
		"node_id", e.id,
		"proposal_id", pid,
		"committed", len(committed),
		"batch_size", len(e.round.transactions),
	)

	e.resetRound()
	e.startConsensus()
}

// commit applies batch through prepare/commit. If the whole batch does not
// fit, the satisfiable subset is committed and the rest is dropped.
func (e *Engine) commit(batch []types.Transaction) []types.Transaction {
	if len(batch) == 0 {
		return nil
	}

	if e.ledger.PrepareState(batch) {
		e.ledger.CommitState()
		return batch
	}

	admitted, excluded := e.ledger.Admissible(batch)
	for _, tx := range excluded {
		slog.Warn("dropping transaction from finalized batch",
			"node_id", e.id,
			"tx", tx.String(),
		)
	}

	if len(admitted) == 0 {
		return nil
	}
	if !e.ledger.PrepareState(admitted) {
		slog.Error("admissible subset failed prepare", "node_id", e.id, "size", len(admitted))
		return nil
	}
	e.ledger.CommitState()
	return admitted
}

func (e *Engine) rememberFinalized(pid string) {
	if pid == "" {
		return
	}
	if _, ok := e.finalized[pid]; ok {
		return
	}

	e.finalized[pid] = struct{}{}
	e.finalizedOrder = append(e.finalizedOrder, pid)

	if len(e.finalizedOrder) > e.cfg.FinalizedHistory {
		oldest := e.finalizedOrder[0]
		e.finalizedOrder = e.finalizedOrder[1:]
		delete(e.finalized, oldest)
	}
}

func (e *Engine) wasFinalized(pid string) bool {
	_, ok := e.finalized[pid]
	return ok
}

func (e *Engine) releaseSnapshot() {
	if e.round.snapshot == 0 {
		return
	}
	e.ledger.DiscardSnapshot(e.round.snapshot)
	e.round.snapshot = 0
}
