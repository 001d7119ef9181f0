package types

import "fmt"

type Phase int

const (
	PhaseProposal Phase = iota
	PhasePrevote
	PhasePrecommit
)

func (p Phase) String() string {
	switch p {
	case PhaseProposal:
		return "PROPOSAL"
	case PhasePrevote:
		return "PREVOTE"
	case PhasePrecommit:
		return "PRECOMMIT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(p))
	}
}

// Message is the only thing nodes exchange. Payload is an opaque proposal
// identifier; nothing guarantees it is a digest of the proposed batch.
type Message struct {
	Phase    Phase
	SenderID int
	Payload  string
}

func NewMessage(phase Phase, senderID int, payload string) Message {
	return Message{Phase: phase, SenderID: senderID, Payload: payload}
}
