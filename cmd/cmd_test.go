package cmd

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/go-authgate/mcpgate/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "mcpgate", root.Use)
	assert.True(t, root.SilenceUsage)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"server", "genkey", "version"})
}

func TestGenKeyCommand(t *testing.T) {
	out, err := run(t, "genkey")
	require.NoError(t, err)

	key := strings.TrimSpace(out)
	raw, err := hex.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	again, err := run(t, "genkey")
	require.NoError(t, err)
	assert.NotEqual(t, key, strings.TrimSpace(again))

	_, err = run(t, "genkey", "extra")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	old := version.Version
	t.Cleanup(func() { version.Version = old })
	version.Version = "v0.3.0"

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mcpgate version v0.3.0")

	out, err = run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "mcpgate version v0.3.0\n", out)
}

func TestServerCommandRejectsInvalidConfig(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "too-short")
	_, err := run(t, "server")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
}
