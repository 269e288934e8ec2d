package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "trendcraft.db"))
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateStatus(t *testing.T) {
	out, err := runCLI(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema version 0")
}

func TestRank_EmptyStore(t *testing.T) {
	out, err := runCLI(t, "rank", "--niche", "fitness")
	require.NoError(t, err)
	assert.Contains(t, out, "ALIGNMENT")
}

func TestDiscover_RequiresCategory(t *testing.T) {
	_, err := runCLI(t, "discover")
	assert.Error(t, err)
}

func TestDiscover_InvalidCategory(t *testing.T) {
	_, err := runCLI(t, "discover", "--category", "astrology")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_category")
}
