package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRecords(t *testing.T) {
	configPath := writeConfig(t)
	seedPeople(t, configPath)

	out, err := run(t, "--config", configPath, "query", "--backend", "local", planPath("older.yaml"))
	require.NoError(t, err)
	assert.Equal(t, `{id: 1, name: "ann", age: 30}
{id: 2, name: "bob", age: 25}
(2 record(s))
`, out)
}

func TestQueryJSON(t *testing.T) {
	configPath := writeConfig(t)
	seedPeople(t, configPath)

	out, err := run(t, "--config", configPath, "--format", "json", "query", "-b", "local", planPath("older.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "local", resp.Data.Backend)
	require.Len(t, resp.Data.Records, 2)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "ann", "age": float64(30)}, resp.Data.Records[0])
}

func TestQueryAccumulation(t *testing.T) {
	configPath := writeConfig(t)
	seedPeople(t, configPath)

	out, err := run(t, "--config", configPath, "query", "--backend", "local", planPath("average.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "{value: 27}\n(1 record(s))\n", out)
}

func TestQueryCountAndExists(t *testing.T) {
	configPath := writeConfig(t)
	seedPeople(t, configPath)

	out, err := run(t, "--config", configPath, "query", "--backend", "local", "--count", planPath("older.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = run(t, "--config", configPath, "query", "--backend", "local", "--exists", planPath("older.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestQueryCountAndExistsExclusive(t *testing.T) {
	configPath := writeConfig(t)

	_, err := run(t, "--config", configPath, "query", "--backend", "local", "--count", "--exists", planPath("older.yaml"))
	require.Error(t, err)
}

func TestQueryMemoryBackendStartsEmpty(t *testing.T) {
	configPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "query", "--backend", "scratch", planPath("average.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "{value: null}\n(1 record(s))\n", out)
}

func TestQueryNeedsBackendChoice(t *testing.T) {
	configPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "query", planPath("older.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "choose a backend with --backend: [local scratch]")
}

func TestQueryUnknownBackend(t *testing.T) {
	configPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "query", "--backend", "prod", planPath("older.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `unknown backend "prod"`)
}

func TestQueryRejectsInlineFields(t *testing.T) {
	configPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "query", "--backend", "local", planPath("adults.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "must name a model")
}

func TestQueryMissingTable(t *testing.T) {
	configPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "query", "--backend", "local", planPath("older.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no such table")
}
