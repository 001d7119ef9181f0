package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"bftledger/internal/command"
	"bftledger/internal/configuration"
	"bftledger/internal/mempool"
	"bftledger/internal/metrics"
	"bftledger/internal/node"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Executor interface {
	Execute(ctx context.Context, line string) (command.Result, error)
}

type LedgerExporter interface {
	Export() *structpb.Struct
	StateHash() (string, error)
}

type Service struct {
	network              string
	address              string
	port                 string
	timeout              time.Duration
	maxConcurrentStreams uint32
	executor             Executor
	ledger               LedgerExporter
	Server               *grpc.Server
}

func NewTransportService(transportConfig *configuration.TransportConfigurationProperties, executor Executor, ledger LedgerExporter) *Service {
	return &Service{
		network:              transportConfig.Network,
		address:              transportConfig.Address,
		port:                 transportConfig.Port,
		timeout:              transportConfig.RequestTimeout(),
		maxConcurrentStreams: transportConfig.MaxConcurrentStreams,
		executor:             executor,
		ledger:               ledger,
	}
}

// NewServer builds the gRPC server with the control service registered. It
// is separate from Start so tests can serve on an in-memory listener.
func (ts *Service) NewServer() *grpc.Server {
	timeout := ts.timeout
	if timeout < time.Millisecond {
		slog.Warn("transport timeout too small, using 1 second", "configured", ts.timeout)
		timeout = time.Second
	}

	var opts []grpc.ServerOption
	if ts.maxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(ts.maxConcurrentStreams))
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(
		metrics.UnaryServerInterceptor(),
		timeoutInterceptor(timeout),
	))

	ts.Server = grpc.NewServer(opts...)
	RegisterControlServer(ts.Server, &controlServer{executor: ts.executor, ledger: ts.ledger})
	reflection.Register(ts.Server)
	return ts.Server
}

func (ts *Service) Start() (net.Listener, error) {
	lis, err := net.Listen(ts.network, net.JoinHostPort(ts.address, ts.port))
	if err != nil {
		return nil, err
	}

	ts.Serve(lis)
	return lis, nil
}

func (ts *Service) Serve(lis net.Listener) {
	srv := ts.Server
	if srv == nil {
		srv = ts.NewServer()
	}
	slog.Info("transport listening for control", "addr", lis.Addr())

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			slog.Error("failed to serve control listener", "error", err)
		}
	}()
}

func (ts *Service) Stop() {
	if ts.Server != nil {
		ts.Server.GracefulStop()
	}
}

func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return handler(ctx, req)
	}
}

type controlServer struct {
	executor Executor
	ledger   LedgerExporter
}

func (s *controlServer) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	line := req.GetFields()["command"].GetStringValue()
	if line == "" {
		return nil, status.Error(codes.InvalidArgument, "missing command field")
	}

	res, err := s.executor.Execute(ctx, line)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]any{
		"ok":     true,
		"output": res.Output,
		"exit":   res.Exit,
	})
}

func (s *controlServer) Balances(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	hash, err := s.ledger.StateHash()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"balances":   structpb.NewStructValue(s.ledger.Export()),
		"state_hash": structpb.NewStringValue(hash),
	}}, nil
}

func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, command.ErrInvalidCommand),
		errors.Is(err, command.ErrEmptyCommand),
		errors.Is(err, node.ErrInvalidTransaction):
		code = codes.InvalidArgument
	case errors.Is(err, node.ErrUnknownNode):
		code = codes.NotFound
	case errors.Is(err, node.ErrInsufficientBalance),
		errors.Is(err, mempool.ErrPoolFull):
		code = codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
