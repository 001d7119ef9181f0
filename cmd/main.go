package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bftledger/internal/command"
	"bftledger/internal/configuration"
	"bftledger/internal/transport"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configDir string

	repl := &cobra.Command{
		Use:   "repl",
		Short: "Run an interactive session against a simulated cluster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd, configDir)
		},
	}

	root := &cobra.Command{
		Use:          "bftledger",
		Short:        "Simulated Byzantine fault tolerant ledger",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd, configDir)
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", configuration.DefaultDir,
		"directory holding application.yml and its profile files")

	root.AddCommand(repl, newServeCommand(&configDir), newExecCommand(&configDir))
	return root
}

func runInteractive(cmd *cobra.Command, configDir string) error {
	svc, err := NewServices(configDir)
	if err != nil {
		return err
	}
	defer closeServices(svc)

	return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), localExecutor{svc.Command})
}

func newServeCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the gRPC control service until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := NewServices(*configDir)
			if err != nil {
				return err
			}
			defer closeServices(svc)

			ts := transport.NewTransportService(svc.Config.GetTransport(), svc.Command, svc.Cluster.Ledger())
			ts.NewServer()
			if _, err := ts.Start(); err != nil {
				return err
			}

			slog.Info("bftledger ready", "nodes", svc.Cluster.NodeIDs())
			<-cmd.Context().Done()

			ts.Stop()
			slog.Info("shutting down bftledger")
			return nil
		},
	}
}

func newExecCommand(configDir *string) *cobra.Command {
	var remote string

	exec := &cobra.Command{
		Use:     "exec <command>...",
		Short:   "Run each argument as one command line and print the results",
		Example: "  bftledger exec \"create_transaction 1 2 100\" \"start 1\" balances\n  bftledger exec --remote 127.0.0.1:7070 status_all",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var run executor
			if remote != "" {
				conn, err := grpc.NewClient(remote, grpc.WithTransportCredentials(insecure.NewCredentials()))
				if err != nil {
					return err
				}
				defer conn.Close()
				run = remoteExecutor{client: transport.NewControlClient(conn)}
			} else {
				svc, err := NewServices(*configDir)
				if err != nil {
					return err
				}
				defer closeServices(svc)
				run = localExecutor{svc.Command}
			}

			out := cmd.OutOrStdout()
			for _, line := range args {
				output, exit, err := run.Execute(cmd.Context(), line)
				if err != nil {
					return fmt.Errorf("%s: %w", line, err)
				}
				if output != "" {
					fmt.Fprintln(out, output)
				}
				if exit {
					break
				}
			}
			return nil
		},
	}
	exec.Flags().StringVar(&remote, "remote", "", "address of a running serve instance")
	return exec
}

func closeServices(svc *Services) {
	if err := svc.Close(); err != nil {
		slog.Error("failed to close services", "error", err)
	}
}

type localExecutor struct {
	service *command.Service
}

func (e localExecutor) Execute(ctx context.Context, line string) (string, bool, error) {
	res, err := e.service.Execute(ctx, line)
	return res.Output, res.Exit, err
}

type remoteExecutor struct {
	client *transport.ControlClient
}

func (e remoteExecutor) Execute(ctx context.Context, line string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	output, err := e.client.Execute(ctx, line)
	return output, false, err
}
