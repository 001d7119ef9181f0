package command

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidCommands(t *testing.T) {
	cmd, err := Parse("start 1")
	require.NoError(t, err)
	assert.Equal(t, Command{Type: TypeStart, NodeID: 1}, cmd)

	cmd, err = Parse("  create_transaction 1 2 100.5 ")
	require.NoError(t, err)
	assert.Equal(t, Command{Type: TypeCreateTransaction, NodeID: 1, ReceiverID: 2, Amount: 100.5}, cmd)

	cmd, err = Parse("STATUS_ALL")
	require.NoError(t, err)
	assert.Equal(t, TypeStatusAll, cmd.Type)

	cmd, err = Parse("network 0.1 250")
	require.NoError(t, err)
	assert.Equal(t, Command{Type: TypeNetwork, DropRate: 0.1, MaxDelay: 250 * time.Millisecond}, cmd)

	for _, line := range []string{"add_node", "balances", "help", "exit", "rollback 3", "status 2", "byzantine 4"} {
		_, err := Parse(line)
		assert.NoError(t, err, line)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, line := range []string{
		"launch 1",
		"start",
		"start one",
		"start 1 2",
		"create_transaction 1 2",
		"create_transaction 1 x 5",
		"create_transaction 1 2 lots",
		"status_all now",
		"network 1.5 10",
		"network 0.1 -5",
		"network x 10",
	} {
		_, err := Parse(line)
		if !errors.Is(err, ErrInvalidCommand) {
			t.Fatalf("%q: expected ErrInvalidCommand, got %v", line, err)
		}
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "create_transaction", TypeCreateTransaction.String())
	assert.Equal(t, "unknown", Type(99).String())
}
