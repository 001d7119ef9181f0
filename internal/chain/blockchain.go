package chain

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"bftledger/internal/metrics"
	"bftledger/internal/types"
)

// Blockchain is an append-only, hash-linked list of finalized batches.
type Blockchain struct {
	mu      sync.RWMutex
	blocks  []Block
	journal Journal
}

// New starts a chain at genesis. A nil journal keeps blocks in memory only.
func New(journal Journal) *Blockchain {
	if journal == nil {
		journal = NewMemoryJournal()
	}
	return &Blockchain{
		blocks:  []Block{Genesis()},
		journal: journal,
	}
}

// AddBlock validates linkage against the latest block, appends the new
// block and writes it to the journal.
func (bc *Blockchain) AddBlock(index int, previousHash string, txs []types.Transaction) (Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	latest := bc.blocks[len(bc.blocks)-1]
	if index != latest.Index+1 {
		return Block{}, fmt.Errorf("%w: index %d does not follow %d", ErrInvalidBlock, index, latest.Index)
	}
	if previousHash != latest.Hash {
		return Block{}, fmt.Errorf("%w: previous hash mismatch at index %d", ErrInvalidBlock, index)
	}

	b := NewBlock(index, previousHash, txs)
	if err := bc.journal.Append(b); err != nil {
		return Block{}, fmt.Errorf("journal block %d: %w", index, err)
	}

	bc.blocks = append(bc.blocks, b)
	metrics.ChainBlocksTotal.Inc()

	slog.Debug("block appended",
		"index", b.Index,
		"hash", b.Hash,
		"transactions", len(b.Transactions),
	)
	return b, nil
}

// Append links txs onto the current tip.
func (bc *Blockchain) Append(txs []types.Transaction) (Block, error) {
	latest := bc.Latest()
	return bc.AddBlock(latest.Index+1, latest.Hash, txs)
}

func (bc *Blockchain) Latest() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

func (bc *Blockchain) Blocks() []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return slices.Clone(bc.blocks)
}

// Verify walks the chain and checks every hash and link.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	for i := 1; i < len(bc.blocks); i++ {
		prev, cur := bc.blocks[i-1], bc.blocks[i]
		if cur.PreviousHash != prev.Hash {
			return fmt.Errorf("%w: block %d not linked to %d", ErrInvalidBlock, cur.Index, prev.Index)
		}
		if cur.Hash != cur.CalculateHash() {
			return fmt.Errorf("%w: block %d hash mismatch", ErrInvalidBlock, cur.Index)
		}
	}
	return nil
}

func (bc *Blockchain) Journal() Journal {
	return bc.journal
}

func (bc *Blockchain) Close() error {
	return bc.journal.Close()
}
