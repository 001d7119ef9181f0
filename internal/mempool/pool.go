package mempool

import (
	"errors"
	"slices"
	"strconv"
	"sync"

	"bftledger/internal/metrics"
	"bftledger/internal/types"
)

var ErrPoolFull = errors.New("transaction pool is full")

// Pool is a per-node FIFO of transactions that have not been finalized yet.
type Pool struct {
	mu      sync.Mutex
	nodeID  string
	maxSize int
	txs     []types.Transaction
}

// New returns an empty pool. maxSize <= 0 means unbounded.
func New(nodeID int, maxSize int) *Pool {
	p := &Pool{nodeID: strconv.Itoa(nodeID), maxSize: maxSize}
	metrics.MempoolPending.WithLabelValues(p.nodeID).Set(0)
	return p
}

func (p *Pool) Add(tx types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxSize > 0 && len(p.txs) >= p.maxSize {
		return ErrPoolFull
	}
	p.txs = append(p.txs, tx)
	metrics.MempoolPending.WithLabelValues(p.nodeID).Set(float64(len(p.txs)))
	return nil
}

func (p *Pool) Pending() []types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.txs)
}

// Remove drops one queued occurrence of each transaction in batch, keeping
// the order of the rest. It returns how many were removed.
func (p *Pool) Remove(batch []types.Transaction) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for _, tx := range batch {
		if i := slices.Index(p.txs, tx); i >= 0 {
			p.txs = slices.Delete(p.txs, i, i+1)
			removed++
		}
	}
	metrics.MempoolPending.WithLabelValues(p.nodeID).Set(float64(len(p.txs)))
	return removed
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}
