package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/pari-mutuel-escrow/internal/escrow"
	"github.com/radieske/pari-mutuel-escrow/internal/shared/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd("cli-secret", "wallet-secret")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestGameIDCommand(t *testing.T) {
	out, err := run(t, "game-id", "--team-a", "A", "--team-b", "B", "--date", "2024-05-01", "--asset", "tok")
	require.NoError(t, err)
	assert.Equal(t, escrow.ComputeGameID("A", "B", "2024-05-01", "tok").String(), out)

	_, err = run(t, "game-id", "--team-a", "A")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--sub", "reg")
	require.NoError(t, err)
	sub, err := auth.Verify("cli-secret", out)
	require.NoError(t, err)
	assert.Equal(t, "reg", sub)

	out, err = run(t, "token", "--sub", "operator", "--wallet")
	require.NoError(t, err)
	sub, err = auth.Verify("wallet-secret", out)
	require.NoError(t, err)
	assert.Equal(t, "operator", sub)
	_, err = auth.Verify("cli-secret", out)
	assert.Error(t, err)
}

func TestQuantityCommands(t *testing.T) {
	out, err := run(t, "quantity", "parse", "6.111")
	require.NoError(t, err)
	assert.Equal(t, "6111000000000000000", out)

	out, err = run(t, "quantity", "format", "--decimals", "6", "2037000")
	require.NoError(t, err)
	assert.Equal(t, "2.037", out)

	_, err = run(t, "quantity", "parse", "-d", "2", "1.001")
	assert.Error(t, err)
}
