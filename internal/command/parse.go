package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Type int

const (
	TypeStart Type = iota
	TypeRollback
	TypeStatus
	TypeStatusAll
	TypeCreateTransaction
	TypeAddNode
	TypeByzantine
	TypeBalances
	TypeNetwork
	TypeHelp
	TypeExit
)

var names = map[string]Type{
	"start":              TypeStart,
	"rollback":           TypeRollback,
	"status":             TypeStatus,
	"status_all":         TypeStatusAll,
	"create_transaction": TypeCreateTransaction,
	"add_node":           TypeAddNode,
	"byzantine":          TypeByzantine,
	"balances":           TypeBalances,
	"network":            TypeNetwork,
	"help":               TypeHelp,
	"exit":               TypeExit,
}

var arity = map[Type]int{
	TypeStart:             1,
	TypeRollback:          1,
	TypeStatus:            1,
	TypeByzantine:         1,
	TypeCreateTransaction: 3,
	TypeNetwork:           2,
}

func (t Type) String() string {
	for name, v := range names {
		if v == t {
			return name
		}
	}
	return "unknown"
}

type Command struct {
	Type       Type
	NodeID     int
	ReceiverID int
	Amount     float64

	DropRate float64
	MaxDelay time.Duration
}

// Parse reads one command line. Node ids are decimal integers; amounts are
// decimal numbers.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}

	t, ok := names[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, fields[0])
	}

	args := fields[1:]
	if want := arity[t]; len(args) != want {
		return Command{}, fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrInvalidCommand, fields[0], want, len(args))
	}

	cmd := Command{Type: t}
	var err error

	switch t {
	case TypeStart, TypeRollback, TypeStatus, TypeByzantine:
		cmd.NodeID, err = parseID(args[0])
	case TypeCreateTransaction:
		if cmd.NodeID, err = parseID(args[0]); err != nil {
			break
		}
		if cmd.ReceiverID, err = parseID(args[1]); err != nil {
			break
		}
		cmd.Amount, err = strconv.ParseFloat(args[2], 64)
		if err != nil {
			err = fmt.Errorf("%w: amount %q is not a number", ErrInvalidCommand, args[2])
		}
	case TypeNetwork:
		cmd.DropRate, cmd.MaxDelay, err = parseNetwork(args[0], args[1])
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func parseNetwork(rate, delay string) (float64, time.Duration, error) {
	r, err := strconv.ParseFloat(rate, 64)
	if err != nil || r < 0 || r > 1 {
		return 0, 0, fmt.Errorf("%w: drop rate %q must be a number in [0,1]", ErrInvalidCommand, rate)
	}
	ms, err := strconv.Atoi(delay)
	if err != nil || ms < 0 {
		return 0, 0, fmt.Errorf("%w: max delay %q must be a non-negative integer of milliseconds", ErrInvalidCommand, delay)
	}
	return r, time.Duration(ms) * time.Millisecond, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: node id %q is not an integer", ErrInvalidCommand, s)
	}
	return id, nil
}
