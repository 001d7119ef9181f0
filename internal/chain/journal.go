package chain

import (
	"slices"
	"sync"
)

// Journal receives every block a chain accepts. Journals are write-ahead
// audit trails; nothing reads them back into a running chain.
type Journal interface {
	Append(b Block) error
	Records() ([]Block, error)
	Close() error
}

type MemoryJournal struct {
	mu     sync.Mutex
	blocks []Block
	closed bool
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(b Block) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	j.blocks = append(j.blocks, b)
	return nil
}

func (j *MemoryJournal) Records() ([]Block, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.blocks), nil
}

func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()
	return nil
}
