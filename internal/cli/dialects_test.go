package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectsText(t *testing.T) {
	out, err := run(t, "dialects")
	require.NoError(t, err)
	for _, name := range []string{"clickhouse", "duckdb", "h2", "mariadb", "postgres", "sqlite"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "driver=none")
}

func TestDialectsJSON(t *testing.T) {
	out, err := run(t, "--format", "json", "dialects")
	require.NoError(t, err)

	var resp struct {
		Data []DialectInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 6)

	byName := map[string]DialectInfo{}
	for _, d := range resp.Data {
		byName[d.Name] = d
		assert.Contains(t, d.Operators, "eq", d.Name)
		assert.Equal(t, 21, len(d.Operators)+len(d.Unsupported), d.Name)
	}
	assert.Equal(t, "sqlite3", byName["sqlite"].Driver)
	assert.Contains(t, byName["postgres"].Aliases, "postgresql")
	assert.Contains(t, byName["postgres"].Unsupported, "listContains")
}
