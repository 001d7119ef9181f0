package domain

import (
	"time"

	"bftledger/internal/types"
)

// Participant is anything the network can deliver to.
type Participant interface {
	ID() int
	Receive(msg types.Message)
}

type Network interface {
	Register(p Participant)
	Broadcast(msg types.Message)
	TotalParticipants() int
	IsRegistered(id int) bool
	Participants() []int
}

type Ledger interface {
	ApplyTransactions(batch []types.Transaction) int
	PrepareState(batch []types.Transaction) bool
	CommitState() bool
	CreateSnapshot() types.SnapshotID
	RollbackState(id types.SnapshotID) bool
	DiscardSnapshot(id types.SnapshotID) bool
	GetBalance(id int) float64
	CanProcessTransaction(tx types.Transaction) bool
	Admissible(batch []types.Transaction) (admitted, excluded []types.Transaction)
}

type Clock interface {
	AfterFunc(d time.Duration, fn func())
}
