package types

import "fmt"

type Stage int

const (
	StageProposal Stage = iota
	StagePrevote
	StagePrecommit
	StageFinalized
)

func (s Stage) String() string {
	switch s {
	case StageProposal:
		return "PROPOSAL"
	case StagePrevote:
		return "PREVOTE"
	case StagePrecommit:
		return "PRECOMMIT"
	case StageFinalized:
		return "FINALIZED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// CanTransition reports whether s -> to is legal. Stages only move forward
// one step at a time; any stage may fall back to PROPOSAL.
func (s Stage) CanTransition(to Stage) bool {
	if to == StageProposal {
		return true
	}
	switch s {
	case StageProposal:
		return to == StagePrevote
	case StagePrevote:
		return to == StagePrecommit
	case StagePrecommit:
		return to == StageFinalized
	default:
		return false
	}
}

// QuorumThreshold is floor(2n/3)+1.
func QuorumThreshold(n int) int {
	if n < 0 {
		n = 0
	}
	return 2*n/3 + 1
}
