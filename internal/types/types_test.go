package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuorumThreshold(t *testing.T) {
	assert.Equal(t, 1, QuorumThreshold(1))
	assert.Equal(t, 2, QuorumThreshold(2))
	assert.Equal(t, 3, QuorumThreshold(3))
	assert.Equal(t, 3, QuorumThreshold(4))
	assert.Equal(t, 5, QuorumThreshold(7))
	assert.Equal(t, 1, QuorumThreshold(0))
}

func TestStage_CanTransition_OnlyForwardOrReset(t *testing.T) {
	all := []Stage{StageProposal, StagePrevote, StagePrecommit, StageFinalized}
	legal := map[[2]Stage]bool{
		{StageProposal, StagePrevote}:    true,
		{StagePrevote, StagePrecommit}:   true,
		{StagePrecommit, StageFinalized}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := to == StageProposal || legal[[2]Stage{from, to}]
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestTransaction_String(t *testing.T) {
	tx := NewTransaction(1, 2, 100)
	assert.Equal(t, "Transaction from Node 1 to Node 2 of amount 100", tx.String())

	tx = NewTransaction(3, 4, 12.5)
	assert.Equal(t, "Transaction from Node 3 to Node 4 of amount 12.5", tx.String())
}

func TestTransaction_Validate(t *testing.T) {
	assert.NoError(t, NewTransaction(1, 2, 0).Validate())
	assert.True(t, errors.Is(NewTransaction(1, 2, -1).Validate(), ErrNegativeAmount))
	assert.True(t, errors.Is(NewTransaction(2, 2, 5).Validate(), ErrSelfTransfer))
}

func TestPhase_StringUnknown(t *testing.T) {
	assert.Equal(t, "PREVOTE", PhasePrevote.String())
	assert.Equal(t, "UNKNOWN(9)", Phase(9).String())
}
