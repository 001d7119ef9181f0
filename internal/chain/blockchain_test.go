package chain

import (
	"errors"
	"testing"

	"bftledger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_Genesis(t *testing.T) {
	g := Genesis()
	assert.Equal(t, 0, g.Index)
	assert.Equal(t, GenesisPreviousHash, g.PreviousHash)
	assert.Empty(t, g.Transactions)
	assert.Len(t, g.Hash, 64)
}

func TestBlock_CalculateHash_DependsOnContent(t *testing.T) {
	txs := []types.Transaction{types.NewTransaction(1, 2, 100)}
	a := NewBlock(1, "x", txs)
	b := NewBlock(1, "x", []types.Transaction{types.NewTransaction(1, 2, 101)})
	c := NewBlock(1, "y", txs)

	assert.Equal(t, a.Hash, NewBlock(1, "x", txs).Hash)
	assert.NotEqual(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestBlockchain_AddBlock_Links(t *testing.T) {
	bc := New(nil)
	tip := bc.Latest()

	b, err := bc.AddBlock(1, tip.Hash, []types.Transaction{types.NewTransaction(1, 2, 5)})
	require.NoError(t, err)
	assert.Equal(t, 2, bc.Len())
	assert.Equal(t, b, bc.Latest())

	_, err = bc.Append(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, bc.Len())
	require.NoError(t, bc.Verify())

	recs, err := bc.Journal().Records()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestBlockchain_AddBlock_RejectsBadIndex(t *testing.T) {
	bc := New(nil)

	_, err := bc.AddBlock(5, bc.Latest().Hash, nil)
	if !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("expected ErrInvalidBlock, got %v", err)
	}
	assert.Equal(t, 1, bc.Len())
}

func TestBlockchain_AddBlock_RejectsBadPreviousHash(t *testing.T) {
	bc := New(nil)

	_, err := bc.AddBlock(1, "nope", nil)
	if !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("expected ErrInvalidBlock, got %v", err)
	}
}

func TestBlockchain_AddBlock_JournalClosed(t *testing.T) {
	bc := New(NewMemoryJournal())
	require.NoError(t, bc.Close())

	_, err := bc.Append(nil)
	assert.ErrorIs(t, err, ErrJournalClosed)
	assert.Equal(t, 1, bc.Len())
}
