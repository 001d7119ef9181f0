package consensus

import (
	"log/slog"

	"bftledger/internal/metrics"
	"bftledger/internal/types"

	"github.com/bits-and-blooms/bitset"
)

const equivocationSuffix = "_fake"

func (e *Engine) castVote(phase types.Phase) {
	payload := e.round.proposalID
	if e.equivocate {
		payload += equivocationSuffix
	}

	if e.accepts(e.id) {
		e.tally(phase, payload, e.id)
	}
	e.host.SendMessageToAll(types.NewMessage(phase, e.id, payload))
}

func (e *Engine) handleVote(phase types.Phase, msg types.Message) {
	if msg.Payload == "" {
		metrics.ConsensusVotesTotal.WithLabelValues(phase.String(), "malformed").Inc()
		slog.Warn("dropping vote without proposal id", "node_id", e.id, "from", msg.SenderID)
		return
	}
	if !e.accepts(msg.SenderID) {
		metrics.ConsensusVotesTotal.WithLabelValues(phase.String(), "rejected").Inc()
		slog.Debug("discarding vote",
			"node_id", e.id,
			"phase", phase,
			"from", msg.SenderID,
		)
		return
	}
	if e.wasFinalized(msg.Payload) {
		metrics.ConsensusVotesTotal.WithLabelValues(phase.String(), "stale").Inc()
		return
	}

	e.tally(phase, msg.Payload, msg.SenderID)
	metrics.ConsensusVotesTotal.WithLabelValues(phase.String(), "counted").Inc()

	e.progress()
	e.ensureTimer()
}

// accepts reports whether votes from id may be counted: the sender must be
// registered and not marked byzantine.
func (e *Engine) accepts(id int) bool {
	if id < 0 {
		return false
	}
	if _, bad := e.byzantine[id]; bad {
		return false
	}
	return e.host.Network().IsRegistered(id)
}

func (e *Engine) tally(phase types.Phase, payload string, sender int) {
	votes := e.round.prevotes
	if phase == types.PhasePrecommit {
		votes = e.round.precommits
	}

	bs, ok := votes[payload]
	if !ok {
		bs = bitset.New(uint(sender) + 1)
		votes[payload] = bs
	}
	bs.Set(uint(sender))
}

func count(votes map[string]*bitset.BitSet, payload string) int {
	if payload == "" {
		return 0
	}
	bs, ok := votes[payload]
	if !ok {
		return 0
	}
	return int(bs.Count())
}

// progress moves the round forward as far as the tallies for the current
// proposal allow.
func (e *Engine) progress() {
	pid := e.round.proposalID
	if pid == "" {
		return
	}

	prevotes := count(e.round.prevotes, pid)
	precommits := count(e.round.precommits, pid)

	if e.round.stage == types.StagePrevote && (prevotes >= e.quorumThreshold || precommits >= e.quorumThreshold) {
		e.disarmTimer()
		if err := e.advance(types.StagePrecommit); err != nil {
			return
		}
		slog.Debug("prevote quorum reached",
			"node_id", e.id,
			"proposal_id", pid,
			"prevotes", prevotes,
			"threshold", e.quorumThreshold,
		)
		e.castVote(types.PhasePrecommit)
		precommits = count(e.round.precommits, pid)
	}

	if e.round.stage == types.StagePrecommit && precommits >= e.quorumThreshold {
		e.finalizeConsensus()
	}
}
