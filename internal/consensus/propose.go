package consensus

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"bftledger/internal/metrics"
	"bftledger/internal/types"

	"golang.org/x/crypto/blake2b"
)

func (e *Engine) startConsensus() {
	e.quorumThreshold = types.QuorumThreshold(e.host.Network().TotalParticipants())
	metrics.ConsensusQuorumThreshold.Set(float64(e.quorumThreshold))

	if e.round.stage != types.StageProposal {
		_ = e.advance(types.StageProposal)
	}
	e.round.proposalID = ""
	e.round.proposerID = 0
	e.round.transactions = e.host.PendingTransactions()

	if len(e.round.transactions) == 0 {
		e.disarmTimer()
		e.releaseSnapshot()
		metrics.ConsensusIdleTotal.Inc()
		slog.Debug("no pending transactions, idling", "node_id", e.id)
		return
	}

	e.initiateProposal()
}

func (e *Engine) initiateProposal() {
	participants := e.host.Network().Participants()
	if len(participants) == 0 {
		slog.Warn("cannot elect leader", "node_id", e.id, "error", ErrNoParticipants)
		return
	}

	e.leaderCursor = (e.leaderCursor + 1) % len(participants)
	e.currentLeaderID = participants[e.leaderCursor]

	if e.currentLeaderID != e.id {
		slog.Debug("waiting for proposal",
			"node_id", e.id,
			"leader", e.currentLeaderID,
			"batch_size", len(e.round.transactions),
		)
		e.ensureTimer()
		return
	}

	e.blockIndex++
	pid := proposalID(e.blockIndex, e.id, e.round.transactions)

	if e.round.snapshot == 0 {
		e.round.snapshot = e.ledger.CreateSnapshot()
	}

	e.round.proposalID = pid
	e.round.proposerID = e.id
	metrics.ConsensusProposalsTotal.Inc()

	slog.Info("proposing block",
		"node_id", e.id,
		"proposal_id", pid,
		"block_index", e.blockIndex,
		"batch_size", len(e.round.transactions),
		"threshold", e.quorumThreshold,
	)

	e.host.SendMessageToAll(types.NewMessage(types.PhaseProposal, e.id, pid))

	if err := e.advance(types.StagePrevote); err != nil {
		return
	}
	e.castVote(types.PhasePrevote)
	e.progress()
	e.ensureTimer()
}

func (e *Engine) handleProposal(msg types.Message) {
	if msg.Payload == "" {
		slog.Warn("dropping proposal without id", "node_id", e.id, "from", msg.SenderID)
		return
	}
	if e.wasFinalized(msg.Payload) {
		slog.Debug("ignoring proposal for finalized round",
			"node_id", e.id,
			"proposal_id", msg.Payload,
		)
		return
	}
	if msg.Payload == e.round.proposalID {
		return
	}

	if e.round.stage != types.StageProposal {
		_ = e.advance(types.StageProposal)
	}

	e.quorumThreshold = types.QuorumThreshold(e.host.Network().TotalParticipants())
	e.round.proposalID = msg.Payload
	e.round.proposerID = msg.SenderID

	slog.Debug("accepted proposal",
		"node_id", e.id,
		"proposal_id", msg.Payload,
		"from", msg.SenderID,
	)

	if err := e.advance(types.StagePrevote); err != nil {
		return
	}
	e.castVote(types.PhasePrevote)
	e.progress()
	e.ensureTimer()
}

// proposalID binds the block index and proposer to a digest of the batch so
// two different batches at the same height never share an id.
func proposalID(index, proposer int, batch []types.Transaction) string {
	h, _ := blake2b.New256(nil)
	for _, tx := range batch {
		h.Write([]byte(tx.String()))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("Block_%d-%d-%s", index, proposer, hex.EncodeToString(sum[:4]))
}
