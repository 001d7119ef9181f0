package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"bftledger/internal/command"
	"bftledger/internal/configuration"
	"bftledger/internal/consensus"
	"bftledger/internal/network"
	"bftledger/internal/node"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func startControl(t *testing.T, executor Executor, ledger LedgerExporter) *ControlClient {
	t.Helper()

	cfg := configuration.Default().Transport
	svc := NewTransportService(&cfg, executor, ledger)
	svc.NewServer()

	lis := bufconn.Listen(bufSize)
	svc.Serve(lis)
	t.Cleanup(svc.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewControlClient(conn)
}

func newCluster(t *testing.T) *node.Cluster {
	t.Helper()

	cluster, err := node.NewCluster(node.Config{
		NodeCount:      4,
		InitialBalance: 1000,
		Network:        network.Config{MaxDelay: 10 * time.Millisecond, Seed: 11},
		Consensus:      consensus.Config{},
		MaxEvents:      10000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cluster.Close() })
	return cluster
}

func TestControl_ExecuteAndBalances(t *testing.T) {
	cluster := newCluster(t)
	client := startControl(t, command.NewService(cluster), cluster.Ledger())
	ctx := context.Background()

	out, err := client.Execute(ctx, "create_transaction 1 2 100")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued")

	out, err = client.Execute(ctx, "start 1")
	require.NoError(t, err)
	assert.Contains(t, out, "Consensus started on node 1")

	balances, hash, err := client.Balances(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Equal(t, 900.0, balances.GetFields()["1"].GetNumberValue())
	assert.Equal(t, 1100.0, balances.GetFields()["2"].GetNumberValue())

	want, err := cluster.Ledger().StateHash()
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}

func TestControl_ErrorCodes(t *testing.T) {
	cluster := newCluster(t)
	client := startControl(t, command.NewService(cluster), cluster.Ledger())
	ctx := context.Background()

	tests := []struct {
		line string
		code codes.Code
	}{
		{"frobnicate", codes.InvalidArgument},
		{"start x", codes.InvalidArgument},
		{"status 42", codes.NotFound},
		{"create_transaction 1 2 5000", codes.FailedPrecondition},
		{"create_transaction 1 1 10", codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := client.Execute(ctx, tt.line)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestControl_MissingCommandField(t *testing.T) {
	cluster := newCluster(t)
	client := startControl(t, command.NewService(cluster), cluster.Ledger())

	_, err := client.Execute(context.Background(), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

type slowExecutor struct{}

func (slowExecutor) Execute(ctx context.Context, _ string) (command.Result, error) {
	<-ctx.Done()
	return command.Result{}, ctx.Err()
}

func TestControl_TimeoutInterceptor(t *testing.T) {
	cluster := newCluster(t)

	cfg := configuration.Default().Transport
	cfg.Timeout = 20
	svc := NewTransportService(&cfg, slowExecutor{}, cluster.Ledger())
	svc.NewServer()

	lis := bufconn.Listen(bufSize)
	svc.Serve(lis)
	t.Cleanup(svc.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	_, err = NewControlClient(conn).Execute(context.Background(), "balances")
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.InvalidArgument, status.Code(toStatus(command.ErrEmptyCommand)))
}
