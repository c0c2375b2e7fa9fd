package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0x00000000000000000000000000000000000000c0"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQRCommandPrintsPayload(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", contract)
	t.Setenv("NETWORK_TAG", "amoy")

	out, err := run(t, "qr", "42")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &payload))
	assert.Equal(t, "delivery_confirmation", payload["type"])
	assert.Equal(t, "42", payload["tokenId"])
	assert.Equal(t, contract, payload["contractAddress"])
	assert.Equal(t, "amoy", payload["network"])
}

func TestQRCommandWritesPNG(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", contract)
	path := filepath.Join(t.TempDir(), "order.png")

	_, err := run(t, "qr", "7", "--out", path, "--size", "128")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
}

func TestQRCommandRejectsBadInput(t *testing.T) {
	t.Setenv("CONTRACT_ADDRESS", contract)
	_, err := run(t, "qr", "abc")
	assert.Error(t, err)

	t.Setenv("CONTRACT_ADDRESS", "")
	_, err = run(t, "qr", "1")
	assert.Error(t, err)
}
