package statemachine

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"

	"bftledger/internal/metrics"
	"bftledger/internal/types"

	"golang.org/x/crypto/blake2b"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type snapshot struct {
	id       types.SnapshotID
	seq      uint64
	balances map[int]float64
}

type journalEntry struct {
	seq    uint64
	batch  []types.Transaction
	seeded bool
	id     int
	amount float64
}

func (e journalEntry) replay(balances map[int]float64) {
	if e.seeded {
		balances[e.id] = e.amount
		return
	}
	for _, tx := range e.batch {
		transfer(balances, tx)
	}
}

// CommitCallback observes every batch that reaches the canonical balances.
type CommitCallback func(batch []types.Transaction)

// StateMachine is the shared balance ledger. All reads and writes go through
// one RWMutex so snapshot, prepare, commit and rollback are atomic with
// respect to balance queries.
type StateMachine struct {
	mu sync.RWMutex

	balances  map[int]float64
	pending   map[int]float64
	prepared  []types.Transaction
	isPrepped bool
	snapshots    []snapshot
	lastSnapshot types.SnapshotID

	// journal holds commits and seeds newer than the oldest live snapshot.
	seq     uint64
	journal []journalEntry

	maxSnapshots int
	callbacks    []CommitCallback
}

// New returns an empty ledger. maxSnapshots <= 0 keeps every snapshot.
func New(maxSnapshots int) *StateMachine {
	return &StateMachine{
		balances:     make(map[int]float64),
		maxSnapshots: maxSnapshots,
	}
}

func (sm *StateMachine) OnCommit(cb CommitCallback) {
	sm.mu.Lock()
	sm.callbacks = append(sm.callbacks, cb)
	sm.mu.Unlock()
}

// Seed sets an account balance outright. Negative balances are clamped to 0.
// Seeds survive a rollback.
func (sm *StateMachine) Seed(id int, balance float64) {
	if balance < 0 {
		balance = 0
	}
	sm.mu.Lock()
	sm.balances[id] = balance
	sm.record(journalEntry{seeded: true, id: id, amount: balance})
	sm.mu.Unlock()
}

// ApplyTransactions mutates balances in place, skipping any transaction
// whose sender cannot cover it. It returns how many were applied. Direct
// applies are not journaled, so rolling back a snapshot undoes them.
func (sm *StateMachine) ApplyTransactions(batch []types.Transaction) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	applied := 0
	for _, tx := range batch {
		if !covers(sm.balances, tx) {
			slog.Warn("skipping transaction",
				"tx", tx.String(),
				"balance", sm.balances[tx.SenderID],
			)
			metrics.LedgerTransactionsTotal.WithLabelValues("direct", "skipped").Inc()
			continue
		}
		transfer(sm.balances, tx)
		applied++
		metrics.LedgerTransactionsTotal.WithLabelValues("direct", "applied").Inc()
	}

	if applied > 0 {
		sm.notify(batch)
	}
	return applied
}

// PrepareState validates the whole batch against a working copy. Either
// every transaction fits or none of them is staged.
func (sm *StateMachine) PrepareState(batch []types.Transaction) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.pending = maps.Clone(sm.balances)
	sm.isPrepped = false
	sm.prepared = nil

	for i, tx := range batch {
		if !covers(sm.pending, tx) {
			slog.Warn("prepare rejected batch",
				"tx", tx.String(),
				"position", i,
				"batch_size", len(batch),
				"pending_balance", sm.pending[tx.SenderID],
			)
			sm.pending = nil
			metrics.LedgerTransactionsTotal.WithLabelValues("prepare", "rejected").Add(float64(len(batch)))
			return false
		}
		transfer(sm.pending, tx)
	}

	sm.isPrepped = true
	sm.prepared = slices.Clone(batch)
	return true
}

// CommitState publishes the prepared working copy. It is a no-op unless the
// last PrepareState succeeded.
func (sm *StateMachine) CommitState() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.isPrepped {
		slog.Warn("commit without successful prepare ignored")
		return false
	}

	sm.balances = sm.pending
	sm.pending = nil
	sm.isPrepped = false

	batch := sm.prepared
	sm.prepared = nil
	sm.record(journalEntry{batch: batch})
	metrics.LedgerTransactionsTotal.WithLabelValues("prepare", "committed").Add(float64(len(batch)))
	sm.notify(batch)
	return true
}

// CreateSnapshot saves the canonical balances and returns a handle that only
// its holder uses to restore or release them.
func (sm *StateMachine) CreateSnapshot() types.SnapshotID {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.lastSnapshot++
	sm.snapshots = append(sm.snapshots, snapshot{
		id:       sm.lastSnapshot,
		seq:      sm.seq,
		balances: maps.Clone(sm.balances),
	})
	if sm.maxSnapshots > 0 && len(sm.snapshots) > sm.maxSnapshots {
		slog.Debug("snapshot stack full, dropping oldest", "max", sm.maxSnapshots, "dropped", sm.snapshots[0].id)
		sm.remove(0)
	}
	metrics.LedgerSnapshotDepth.Set(float64(len(sm.snapshots)))
	return sm.lastSnapshot
}

// RollbackState restores the snapshot named by id. Commits and seeds made
// after it was taken are replayed on top, so only direct applies are undone
// and no finalized batch is ever lost.
func (sm *StateMachine) RollbackState(id types.SnapshotID) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	i := sm.find(id)
	if i < 0 {
		slog.Warn("rollback requested for unknown snapshot", "snapshot", id)
		return false
	}

	snap := sm.snapshots[i]
	restored := snap.balances
	replayed := 0
	for _, entry := range sm.journal {
		if entry.seq <= snap.seq {
			continue
		}
		entry.replay(restored)
		replayed++
	}

	sm.balances = restored
	sm.pending = nil
	sm.isPrepped = false
	sm.prepared = nil
	sm.remove(i)

	metrics.LedgerRollbacksTotal.Inc()
	slog.Info("ledger rolled back",
		"snapshot", id,
		"replayed", replayed,
		"remaining_snapshots", len(sm.snapshots),
	)
	return true
}

// DiscardSnapshot releases the snapshot named by id without restoring it.
func (sm *StateMachine) DiscardSnapshot(id types.SnapshotID) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	i := sm.find(id)
	if i < 0 {
		return false
	}
	sm.remove(i)
	return true
}

func (sm *StateMachine) find(id types.SnapshotID) int {
	if id == 0 {
		return -1
	}
	return slices.IndexFunc(sm.snapshots, func(s snapshot) bool { return s.id == id })
}

// remove drops snapshot i and every journal entry no live snapshot can
// still need.
func (sm *StateMachine) remove(i int) {
	sm.snapshots = slices.Delete(sm.snapshots, i, i+1)
	metrics.LedgerSnapshotDepth.Set(float64(len(sm.snapshots)))

	if len(sm.snapshots) == 0 {
		sm.journal = nil
		return
	}
	oldest := sm.snapshots[0].seq
	for _, s := range sm.snapshots[1:] {
		oldest = min(oldest, s.seq)
	}
	sm.journal = slices.DeleteFunc(sm.journal, func(e journalEntry) bool { return e.seq <= oldest })
}

// record journals a durable change while any snapshot could be restored
// over it.
func (sm *StateMachine) record(entry journalEntry) {
	sm.seq++
	if len(sm.snapshots) == 0 {
		return
	}
	entry.seq = sm.seq
	sm.journal = append(sm.journal, entry)
}

func (sm *StateMachine) SnapshotDepth() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.snapshots)
}

// GetBalance returns 0 for identities the ledger has never seen.
func (sm *StateMachine) GetBalance(id int) float64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.balances[id]
}

func (sm *StateMachine) CanProcessTransaction(tx types.Transaction) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return covers(sm.balances, tx)
}

// Admissible walks the batch in order against a scratch copy and splits it
// into the transactions that fit and the ones that do not.
func (sm *StateMachine) Admissible(batch []types.Transaction) (admitted, excluded []types.Transaction) {
	sm.mu.RLock()
	scratch := maps.Clone(sm.balances)
	sm.mu.RUnlock()

	for _, tx := range batch {
		if covers(scratch, tx) {
			transfer(scratch, tx)
			admitted = append(admitted, tx)
		} else {
			excluded = append(excluded, tx)
		}
	}
	return admitted, excluded
}

func (sm *StateMachine) Balances() map[int]float64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return maps.Clone(sm.balances)
}

// Export renders balances as a protobuf Struct keyed by decimal account id.
func (sm *StateMachine) Export() *structpb.Struct {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	fields := make(map[string]*structpb.Value, len(sm.balances))
	for id, bal := range sm.balances {
		fields[strconv.Itoa(id)] = structpb.NewNumberValue(bal)
	}
	return &structpb.Struct{Fields: fields}
}

// StateHash is a blake2b-256 digest of the deterministic encoding of Export.
func (sm *StateMachine) StateHash() (string, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(sm.Export())
	if err != nil {
		return "", fmt.Errorf("marshal ledger: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (sm *StateMachine) notify(batch []types.Transaction) {
	for _, cb := range sm.callbacks {
		cb(batch)
	}
}

func covers(balances map[int]float64, tx types.Transaction) bool {
	return tx.Amount >= 0 && balances[tx.SenderID] >= tx.Amount
}

func transfer(balances map[int]float64, tx types.Transaction) {
	balances[tx.SenderID] -= tx.Amount
	balances[tx.ReceiverID] += tx.Amount
}
