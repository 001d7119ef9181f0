package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"bftledger/internal/consensus"
	"bftledger/internal/network"
	"bftledger/internal/node"
	"bftledger/internal/sim"
	"bftledger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	startErr  error
	started   []int
	byzantine []int
	dropRate  float64
	maxDelay  time.Duration
}

func (f *fakeCluster) Start(id int) (node.Report, error) {
	f.started = append(f.started, id)
	return node.Report{Events: 12}, f.startErr
}

func (f *fakeCluster) Rollback(int) (node.Report, error) { return node.Report{}, nil }

func (f *fakeCluster) Status(id int) (node.AgentStatus, error) {
	if id != 1 {
		return node.AgentStatus{}, node.ErrUnknownNode
	}
	return node.AgentStatus{NodeID: 1, ChainLength: 3, Balance: 900}, nil
}

func (f *fakeCluster) StatusAll() []node.AgentStatus {
	return []node.AgentStatus{{NodeID: 1}, {NodeID: 2}}
}

func (f *fakeCluster) CreateTransaction(s, r int, amt float64) (types.Transaction, error) {
	return types.NewTransaction(s, r, amt), nil
}

func (f *fakeCluster) AddNode() (int, error) { return 5, nil }

func (f *fakeCluster) MarkByzantine(id int) error {
	f.byzantine = append(f.byzantine, id)
	return nil
}

func (f *fakeCluster) Balances() map[int]float64 {
	return map[int]float64{2: 1100, 1: 900}
}

func (f *fakeCluster) SetNetworkConditions(dropRate float64, maxDelay time.Duration) {
	f.dropRate = dropRate
	f.maxDelay = maxDelay
}

func (f *fakeCluster) NetworkStats() network.Stats {
	return network.Stats{Broadcasts: 4, Scheduled: 11, Lost: 1, Drops: 2}
}

func TestService_Execute_Dispatches(t *testing.T) {
	fc := &fakeCluster{}
	svc := NewService(fc)
	ctx := context.Background()

	res, err := svc.Execute(ctx, "start 1")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, fc.started)
	assert.Contains(t, res.Output, "Consensus started on node 1")

	res, err = svc.Execute(ctx, "status 1")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Node 1: chain length 3")
	assert.Contains(t, res.Output, "balance 900.00")

	res, err = svc.Execute(ctx, "balances")
	require.NoError(t, err)
	assert.Equal(t, "Node 1: 900.00\nNode 2: 1100.00", res.Output)

	res, err = svc.Execute(ctx, "create_transaction 1 2 100")
	require.NoError(t, err)
	assert.Equal(t, "Queued Transaction from Node 1 to Node 2 of amount 100", res.Output)

	res, err = svc.Execute(ctx, "byzantine 3")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, fc.byzantine)

	res, err = svc.Execute(ctx, "network 0.25 40")
	require.NoError(t, err)
	assert.Equal(t, 0.25, fc.dropRate)
	assert.Equal(t, 40*time.Millisecond, fc.maxDelay)
	assert.Equal(t, "Network drop rate 0.25, max delay 40ms", res.Output)

	res, err = svc.Execute(ctx, "status_all")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Node 2:")
	assert.Contains(t, res.Output, "Network: 4 broadcasts, 11 deliveries scheduled, 1 lost, 2 dropped attempts")

	res, err = svc.Execute(ctx, "exit")
	require.NoError(t, err)
	assert.True(t, res.Exit)
	assert.Equal(t, TypeExit, res.Type)
}

func TestService_Execute_ValidationErrorsSurface(t *testing.T) {
	svc := NewService(&fakeCluster{})

	_, err := svc.Execute(context.Background(), "status 7")
	assert.ErrorIs(t, err, node.ErrUnknownNode)

	_, err = svc.Execute(context.Background(), "nonsense")
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestService_Execute_UnsettledIsNotAnError(t *testing.T) {
	fc := &fakeCluster{startErr: errors.Join(errors.New("settle"), sim.ErrEventBudgetExhausted)}
	svc := NewService(fc)

	res, err := svc.Execute(context.Background(), "start 1")

	require.NoError(t, err)
	assert.Contains(t, res.Output, "still running")
}

func TestService_Execute_CancelledContext(t *testing.T) {
	svc := NewService(&fakeCluster{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Execute(ctx, "balances")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_Execute_EndToEnd(t *testing.T) {
	cluster, err := node.NewCluster(node.Config{
		NodeCount:      4,
		InitialBalance: 1000,
		Network:        network.Config{MaxDelay: 10 * time.Millisecond, Seed: 5},
		Consensus:      consensus.Config{},
		MaxEvents:      10000,
	})
	require.NoError(t, err)
	defer cluster.Close()

	svc := NewService(cluster)
	ctx := context.Background()

	for _, line := range []string{"create_transaction 1 2 100", "start 1"} {
		_, err := svc.Execute(ctx, line)
		require.NoError(t, err, line)
	}

	res, err := svc.Execute(ctx, "balances")
	require.NoError(t, err)
	assert.Equal(t, "Node 1: 900.00\nNode 2: 1100.00\nNode 3: 1000.00\nNode 4: 1000.00", res.Output)

	_, err = svc.Execute(ctx, "create_transaction 3 4 5000")
	assert.ErrorIs(t, err, node.ErrInsufficientBalance)
}
