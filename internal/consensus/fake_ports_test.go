package consensus

import (
	"slices"
	"time"

	"bftledger/internal/domain"
	"bftledger/internal/types"
)

type fakeNetwork struct {
	ids []int
}

func (n *fakeNetwork) Register(p domain.Participant) { n.ids = append(n.ids, p.ID()) }
func (n *fakeNetwork) Broadcast(types.Message)       {}
func (n *fakeNetwork) TotalParticipants() int        { return len(n.ids) }
func (n *fakeNetwork) IsRegistered(id int) bool      { return slices.Contains(n.ids, id) }
func (n *fakeNetwork) Participants() []int           { return slices.Clone(n.ids) }

type finalizedRecord struct {
	proposalID string
	batch      []types.Transaction
}

type fakeHost struct {
	id        int
	net       *fakeNetwork
	pending   []types.Transaction
	sent      []types.Message
	finalized []finalizedRecord
	cleared   int
}

func (h *fakeHost) ID() int                                  { return h.id }
func (h *fakeHost) PendingTransactions() []types.Transaction { return slices.Clone(h.pending) }
func (h *fakeHost) SendMessageToAll(msg types.Message)       { h.sent = append(h.sent, msg) }
func (h *fakeHost) Network() domain.Network                  { return h.net }

func (h *fakeHost) ClearPendingTransactions(batch []types.Transaction) {
	for _, tx := range batch {
		if i := slices.Index(h.pending, tx); i >= 0 {
			h.pending = slices.Delete(h.pending, i, i+1)
		}
	}
	h.cleared++
}

func (h *fakeHost) RecordFinalized(proposalID string, batch []types.Transaction) {
	h.finalized = append(h.finalized, finalizedRecord{proposalID: proposalID, batch: batch})
}

func (h *fakeHost) sentWith(phase types.Phase) []types.Message {
	var out []types.Message
	for _, m := range h.sent {
		if m.Phase == phase {
			out = append(out, m)
		}
	}
	return out
}

type fakeLedger struct {
	PrepareOK bool

	PrepareCalls   int
	CommitCalls    int
	SnapshotCalls  int
	RollbackCalls  int
	DiscardCalls   int
	RolledBack     []types.SnapshotID
	Discarded      []types.SnapshotID
	Prepared       [][]types.Transaction
	AdmittedResult []types.Transaction
}

func (l *fakeLedger) ApplyTransactions(batch []types.Transaction) int { return len(batch) }

func (l *fakeLedger) PrepareState(batch []types.Transaction) bool {
	l.PrepareCalls++
	l.Prepared = append(l.Prepared, batch)
	if l.PrepareOK {
		return true
	}
	return l.AdmittedResult != nil && slices.Equal(batch, l.AdmittedResult)
}

func (l *fakeLedger) CommitState() bool {
	l.CommitCalls++
	return true
}

func (l *fakeLedger) CreateSnapshot() types.SnapshotID {
	l.SnapshotCalls++
	return types.SnapshotID(l.SnapshotCalls)
}

func (l *fakeLedger) RollbackState(id types.SnapshotID) bool {
	l.RollbackCalls++
	l.RolledBack = append(l.RolledBack, id)
	return true
}

func (l *fakeLedger) DiscardSnapshot(id types.SnapshotID) bool {
	l.DiscardCalls++
	l.Discarded = append(l.Discarded, id)
	return true
}

func (l *fakeLedger) GetBalance(int) float64                       { return 0 }
func (l *fakeLedger) CanProcessTransaction(types.Transaction) bool { return true }

func (l *fakeLedger) Admissible(batch []types.Transaction) (admitted, excluded []types.Transaction) {
	for _, tx := range batch {
		if slices.Contains(l.AdmittedResult, tx) {
			admitted = append(admitted, tx)
		} else {
			excluded = append(excluded, tx)
		}
	}
	return admitted, excluded
}

type fakeClock struct {
	timers []func()
	delays []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) {
	c.timers = append(c.timers, fn)
	c.delays = append(c.delays, d)
}

// fireAll runs every timer queued so far, including stale ones.
func (c *fakeClock) fireAll() {
	timers := c.timers
	c.timers = nil
	c.delays = nil
	for _, fn := range timers {
		fn()
	}
}

func newTestEngine(id int, ids []int, pending ...types.Transaction) (*Engine, *fakeHost, *fakeLedger, *fakeClock) {
	host := &fakeHost{id: id, net: &fakeNetwork{ids: ids}, pending: pending}
	ledger := &fakeLedger{PrepareOK: true}
	clock := &fakeClock{}
	e := New(host, ledger, clock, Config{})
	return e, host, ledger, clock
}
