package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedExecutor struct {
	lines   []string
	outputs map[string]string
}

func (e *scriptedExecutor) Execute(_ context.Context, line string) (string, bool, error) {
	e.lines = append(e.lines, line)
	switch line {
	case "exit":
		return "Exiting", true, nil
	case "boom":
		return "", false, errors.New("boom")
	}
	return e.outputs[line], false, nil
}

func TestRunREPL_StopsOnExit(t *testing.T) {
	exec := &scriptedExecutor{outputs: map[string]string{"balances": "Node 1: 1000.00"}}
	var out bytes.Buffer

	err := runREPL(context.Background(), strings.NewReader("balances\n\nboom\nexit\nstatus 1\n"), &out, exec)
	require.NoError(t, err)

	assert.Equal(t, []string{"balances", "boom", "exit"}, exec.lines)
	assert.Contains(t, out.String(), "Node 1: 1000.00")
	assert.Contains(t, out.String(), "Error: boom")
	assert.Contains(t, out.String(), "Exiting")
}

func TestRunREPL_EOF(t *testing.T) {
	exec := &scriptedExecutor{}
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), strings.NewReader("help"), &out, exec))
	assert.Equal(t, []string{"help"}, exec.lines)
}

func TestRunREPL_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &scriptedExecutor{}
	require.NoError(t, runREPL(ctx, strings.NewReader("balances\n"), &bytes.Buffer{}, exec))
	assert.Empty(t, exec.lines)
}

func TestExecCommand_Local(t *testing.T) {
	t.Setenv("BFTLEDGER_PROFILE", "local")
	t.Setenv("BFTLEDGER_LOG_LEVEL", "error")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config-dir", "../internal/static", "exec",
		"create_transaction 1 2 100", "start 1", "balances"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Node 1: 900.00")
	assert.Contains(t, out.String(), "Node 2: 1100.00")
}

func TestExecCommand_InvalidLine(t *testing.T) {
	t.Setenv("BFTLEDGER_PROFILE", "local")
	t.Setenv("BFTLEDGER_LOG_LEVEL", "error")

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config-dir", "../internal/static", "exec", "frobnicate"})

	assert.Error(t, root.ExecuteContext(context.Background()))
}
