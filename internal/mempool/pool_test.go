package mempool

import (
	"errors"
	"testing"

	"bftledger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AddPendingRemove(t *testing.T) {
	p := New(1, 0)
	a := types.NewTransaction(1, 2, 10)
	b := types.NewTransaction(1, 3, 20)

	require.NoError(t, p.Add(a))
	require.NoError(t, p.Add(b))
	assert.Equal(t, []types.Transaction{a, b}, p.Pending())
	assert.Equal(t, 2, p.Len())

	assert.Equal(t, 2, p.Remove([]types.Transaction{a, b}))
	assert.Empty(t, p.Pending())
	assert.Zero(t, p.Len())
}

func TestPool_Remove_KeepsLaterTransactions(t *testing.T) {
	p := New(1, 0)
	a := types.NewTransaction(1, 2, 10)
	b := types.NewTransaction(1, 3, 20)
	late := types.NewTransaction(1, 4, 5)

	require.NoError(t, p.Add(a))
	require.NoError(t, p.Add(b))
	require.NoError(t, p.Add(a))
	require.NoError(t, p.Add(late))

	assert.Equal(t, 2, p.Remove([]types.Transaction{a, b}))
	assert.Equal(t, []types.Transaction{a, late}, p.Pending())

	assert.Zero(t, p.Remove([]types.Transaction{types.NewTransaction(9, 8, 1)}))
	assert.Equal(t, 2, p.Len())
}

func TestPool_Pending_ReturnsCopy(t *testing.T) {
	p := New(1, 0)
	require.NoError(t, p.Add(types.NewTransaction(1, 2, 10)))

	got := p.Pending()
	got[0].Amount = 999

	assert.Equal(t, 10.0, p.Pending()[0].Amount)
}

func TestPool_Add_Full(t *testing.T) {
	p := New(2, 1)
	require.NoError(t, p.Add(types.NewTransaction(2, 1, 1)))

	err := p.Add(types.NewTransaction(2, 1, 1))
	if !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}
