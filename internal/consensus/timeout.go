package consensus

import (
	"log/slog"

	"bftledger/internal/metrics"
	"bftledger/internal/types"
)

func (e *Engine) roundActive() bool {
	switch e.round.stage {
	case types.StagePrevote, types.StagePrecommit:
		return true
	case types.StageProposal:
		return len(e.round.transactions) > 0
	default:
		return false
	}
}

// ensureTimer arms the round timeout unless one is already pending or the
// round has nothing to wait for.
func (e *Engine) ensureTimer() {
	if e.timerArmed || !e.roundActive() {
		return
	}

	e.timerGen++
	gen := e.timerGen
	e.timerArmed = true

	e.clock.AfterFunc(e.cfg.RoundTimeout, func() { e.onTimer(gen) })
}

func (e *Engine) disarmTimer() {
	e.timerGen++
	e.timerArmed = false
}

func (e *Engine) onTimer(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.timerGen || !e.timerArmed {
		return
	}
	e.timerArmed = false
	e.checkForTimeout()
}

// checkForTimeout retries the round until maxRetries consecutive timeouts
// have been seen, then rolls back once and starts over.
func (e *Engine) checkForTimeout() {
	e.retryCount++
	e.timeouts++
	metrics.ConsensusTimeoutsTotal.Inc()

	if e.retryCount >= e.cfg.MaxRetries {
		slog.Warn("retry budget exhausted, rolling back",
			"node_id", e.id,
			"proposal_id", e.round.proposalID,
			"retries", e.retryCount,
		)
		e.retryCount = 0
		e.rollbackConsensus()
		return
	}

	slog.Info("round timed out, retrying",
		"node_id", e.id,
		"stage", e.round.stage,
		"proposal_id", e.round.proposalID,
		"retry", e.retryCount,
		"max_retries", e.cfg.MaxRetries,
	)
	e.startConsensus()
}

func (e *Engine) rollbackConsensus() {
	e.disarmTimer()
	e.rollbacks++
	metrics.ConsensusRollbacksTotal.Inc()

	if e.round.snapshot != 0 {
		e.ledger.RollbackState(e.round.snapshot)
		e.round.snapshot = 0
	} else {
		slog.Debug("no snapshot owned for this round, ledger untouched", "node_id", e.id)
	}

	batch := e.round.transactions
	slog.Info("rolling back round",
		"node_id", e.id,
		"proposal_id", e.round.proposalID,
		"rebroadcast", len(batch),
	)

	for _, tx := range batch {
		e.host.SendMessageToAll(types.NewMessage(types.PhaseProposal, e.id, tx.String()))
	}

	e.resetRound()
	e.startConsensus()
}
