package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/typewriter/internal/executor"
	"github.com/roach88/typewriter/internal/ir"
)

const configTemplate = `logger:
  level: error
pool:
  max_size: 2
  min_idle: 0
  acquire_timeout: 2s
backends:
  local:
    kind: sql
    dialect: sqlite
    dsn: %s
  scratch:
    kind: memory
models:
  person:
    source: person
    identity: id
    fields:
      - {name: id, type: numeric}
      - {name: name, type: string}
      - {name: age, type: numeric}
`

// writeConfig writes a config with a SQLite backend in a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "typewriter.yaml")
	body := fmt.Sprintf(configTemplate, filepath.Join(dir, "people.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seedPeople creates the person table on the local backend and fills it.
func seedPeople(t *testing.T, configPath string) {
	t.Helper()
	_, err := run(t, "--config", configPath, "schema", "person", "--apply", "local")
	require.NoError(t, err)

	cfg, err := loadConfig(configPath)
	require.NoError(t, err)
	m, err := cfg.BuildModel("person", nil)
	require.NoError(t, err)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec, closePool, err := OpenExecutor(ctx, cfg, "local", m, logger)
	require.NoError(t, err)
	defer closePool()

	people := []struct {
		id   int64
		name string
		age  int64
	}{
		{1, "ann", 30},
		{2, "bob", 25},
		{3, "cy", 41},
		{4, "dee", 12},
	}
	for _, p := range people {
		rec := executor.Record{
			Fields: m.Fields(),
			Values: []ir.IRValue{ir.IRInt(p.id), ir.IRString(p.name), ir.IRInt(p.age)},
		}
		require.NoError(t, exec.Save(ctx, rec))
	}
}

func planPath(name string) string {
	return filepath.Join("testdata", "plans", name)
}
