package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaPrintsTable(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "schema", "person")
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "person" ("id" numeric PRIMARY KEY, "name" text, "age" numeric)`+"\n", out)
}

func TestSchemaOtherDialect(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "schema", "--dialect", "clickhouse", "person")
	require.NoError(t, err)
	assert.Contains(t, out, "ENGINE = ReplacingMergeTree ORDER BY `id`")
}

func TestSchemaApply(t *testing.T) {
	configPath := writeConfig(t)

	out, err := run(t, "--config", configPath, "schema", "person", "--apply", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Applied to local")

	// Creating twice is a no-op.
	_, err = run(t, "--config", configPath, "schema", "person", "--apply", "local")
	require.NoError(t, err)

	out, err = run(t, "--config", configPath, "query", "--backend", "local", "--count", planPath("older.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestSchemaApplyNeedsSQLBackend(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "schema", "person", "--apply", "scratch")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no SQL backend named scratch")
}

func TestSchemaUnknownModel(t *testing.T) {
	out, err := run(t, "--config", writeConfig(t), "schema", "animal")
	require.Error(t, err)
	assert.Contains(t, out, `unknown model "animal"`)
}
