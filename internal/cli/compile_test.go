package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileInlineFields(t *testing.T) {
	out, err := run(t, "compile", planPath("adults.yaml"))
	require.NoError(t, err)

	assert.Equal(t, `-- sqlite
SELECT * FROM "person" WHERE "age" > ? ORDER BY "name" ASC LIMIT ?
-- $1 = 15
-- $2 = 10
`, out)
}

func TestCompileJSON(t *testing.T) {
	out, err := run(t, "--format", "json", "compile", "--dialect", "postgresql", planPath("adults.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   SQLOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "postgres", resp.Data.Dialect)
	assert.Contains(t, resp.Data.SQL, `"age" > $1`)
	assert.Equal(t, []any{float64(15), float64(10)}, resp.Data.Params)
	assert.NotEmpty(t, resp.Data.StatementID)
	assert.NotEmpty(t, resp.Data.Fingerprint)
}

func TestCompileFingerprintIgnoresDialect(t *testing.T) {
	fingerprint := func(args ...string) string {
		out, err := run(t, append([]string{"--format", "json", "compile"}, args...)...)
		require.NoError(t, err)
		var resp struct {
			Data struct {
				Fingerprint string `json:"fingerprint"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp.Data.Fingerprint
	}

	sqlite := fingerprint(planPath("adults.yaml"))
	assert.Equal(t, sqlite, fingerprint("--dialect", "duckdb", planPath("adults.yaml")))
	assert.Equal(t, sqlite, fingerprint("--document", planPath("adults.yaml")))
}

func TestCompileDocument(t *testing.T) {
	out, err := run(t, "--format", "json", "compile", "--document", planPath("adults.yaml"))
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Collection string         `json:"collection"`
			Filter     map[string]any `json:"filter"`
			Sort       map[string]any `json:"sort"`
			Limit      *int64         `json:"limit"`
			Pipeline   []any          `json:"pipeline"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "person", resp.Data.Collection)
	assert.Equal(t, map[string]any{"age": map[string]any{"$gt": float64(15)}}, resp.Data.Filter)
	assert.Equal(t, map[string]any{"name": float64(1)}, resp.Data.Sort)
	require.NotNil(t, resp.Data.Limit)
	assert.Equal(t, int64(10), *resp.Data.Limit)
	assert.Nil(t, resp.Data.Pipeline)
}

func TestCompileDocumentText(t *testing.T) {
	out, err := run(t, "compile", "--document", planPath("adults.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "db.person.find(")
	assert.Contains(t, out, ".limit(10)")
}

func TestCompileModelFromConfig(t *testing.T) {
	configPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "compile", planPath("average.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, `SELECT AVG("age") AS "value" FROM "person"`)

	out, err = run(t, "--config", configPath, "compile", "--document", planPath("average.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "db.person.aggregate([")
}

func TestCompileUnknownField(t *testing.T) {
	out, err := run(t, "compile", planPath("unknown_field.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
	assert.Contains(t, out, `unknown field "height"`)
}

func TestCompileUnknownKey(t *testing.T) {
	out, err := run(t, "compile", planPath("typo.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
	assert.Contains(t, out, "limt")
}

func TestCompileMissingPlan(t *testing.T) {
	out, err := run(t, "compile", planPath("nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "plan file not found")
}

func TestCompileUnknownDialect(t *testing.T) {
	out, err := run(t, "compile", "--dialect", "oracle", planPath("adults.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `unknown dialect "oracle"`)
}

func TestCompileModelWithoutConfig(t *testing.T) {
	out, err := run(t, "--config", "/nonexistent/typewriter.yaml", "compile", planPath("older.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
