package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"bftledger/internal/metrics"
	"bftledger/internal/network"
	"bftledger/internal/node"
	"bftledger/internal/sim"
	"bftledger/internal/types"
)

// Cluster is the part of node.Cluster the command surface drives.
type Cluster interface {
	Start(id int) (node.Report, error)
	Rollback(id int) (node.Report, error)
	Status(id int) (node.AgentStatus, error)
	StatusAll() []node.AgentStatus
	CreateTransaction(senderID, receiverID int, amount float64) (types.Transaction, error)
	AddNode() (int, error)
	MarkByzantine(id int) error
	Balances() map[int]float64
	SetNetworkConditions(dropRate float64, maxDelay time.Duration)
	NetworkStats() network.Stats
}

type Result struct {
	Type   Type
	Output string
	Exit   bool
}

type Service struct {
	cluster Cluster
}

func NewService(cluster Cluster) *Service {
	return &Service{cluster: cluster}
}

// Execute parses and runs one command line. Validation failures come back
// as errors; protocol trouble such as an unsettled simulation is reported in
// the output only.
func (s *Service) Execute(ctx context.Context, line string) (Result, error) {
	cmd, err := Parse(line)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("parse", "error").Inc()
		return Result{}, err
	}

	start := time.Now()
	res, err := s.run(ctx, cmd)
	metrics.CommandDuration.WithLabelValues(cmd.Type.String()).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		slog.Debug("command failed", "command", cmd.Type.String(), "error", err)
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), status).Inc()

	res.Type = cmd.Type
	return res, err
}

func (s *Service) run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	switch cmd.Type {
	case TypeStart:
		rep, err := s.cluster.Start(cmd.NodeID)
		return settled(fmt.Sprintf("Consensus started on node %d", cmd.NodeID), rep, err)

	case TypeRollback:
		rep, err := s.cluster.Rollback(cmd.NodeID)
		return settled(fmt.Sprintf("Rolled back consensus on node %d", cmd.NodeID), rep, err)

	case TypeStatus:
		st, err := s.cluster.Status(cmd.NodeID)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: FormatStatus(st)}, nil

	case TypeStatusAll:
		all := s.cluster.StatusAll()
		parts := make([]string, 0, len(all))
		for _, st := range all {
			parts = append(parts, FormatStatus(st))
		}
		parts = append(parts, FormatNetworkStats(s.cluster.NetworkStats()))
		return Result{Output: strings.Join(parts, "\n")}, nil

	case TypeCreateTransaction:
		tx, err := s.cluster.CreateTransaction(cmd.NodeID, cmd.ReceiverID, cmd.Amount)
		if err != nil {
			return Result{}, err
		}
		return Result{Output: "Queued " + tx.String()}, nil

	case TypeAddNode:
		id, err := s.cluster.AddNode()
		if err != nil {
			return Result{}, err
		}
		return Result{Output: fmt.Sprintf("Added node %d", id)}, nil

	case TypeByzantine:
		if err := s.cluster.MarkByzantine(cmd.NodeID); err != nil {
			return Result{}, err
		}
		return Result{Output: fmt.Sprintf("Votes from node %d are now discounted", cmd.NodeID)}, nil

	case TypeBalances:
		return Result{Output: FormatBalances(s.cluster.Balances())}, nil

	case TypeNetwork:
		s.cluster.SetNetworkConditions(cmd.DropRate, cmd.MaxDelay)
		return Result{Output: fmt.Sprintf("Network drop rate %s, max delay %s", formatAmount(cmd.DropRate), cmd.MaxDelay)}, nil

	case TypeHelp:
		return Result{Output: Help()}, nil

	case TypeExit:
		return Result{Output: "Exiting", Exit: true}, nil
	}

	return Result{}, fmt.Errorf("%w: unhandled command type %d", ErrInvalidCommand, cmd.Type)
}

func settled(msg string, rep node.Report, err error) (Result, error) {
	switch {
	case err == nil:
		return Result{Output: fmt.Sprintf("%s (%d events, %s simulated)", msg, rep.Events, rep.VirtualTime)}, nil
	case errors.Is(err, sim.ErrEventBudgetExhausted):
		return Result{Output: fmt.Sprintf("%s; simulation still running after %d events", msg, rep.Events)}, nil
	default:
		return Result{}, err
	}
}

func FormatStatus(st node.AgentStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node %d: chain length %d, stage %s, balance %s, pending %d",
		st.NodeID, st.ChainLength, st.Consensus.Stage, formatAmount(st.Balance), len(st.Pending))
	fmt.Fprintf(&b, "\n  %s", st.Consensus)
	for _, tx := range st.Pending {
		fmt.Fprintf(&b, "\n  pending: %s", tx)
	}
	return b.String()
}

func FormatNetworkStats(st network.Stats) string {
	return fmt.Sprintf("Network: %d broadcasts, %d deliveries scheduled, %d lost, %d dropped attempts",
		st.Broadcasts, st.Scheduled, st.Lost, st.Drops)
}

func FormatBalances(balances map[int]float64) string {
	ids := make([]int, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("Node %d: %s", id, formatAmount(balances[id])))
	}
	return strings.Join(lines, "\n")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
