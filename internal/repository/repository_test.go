package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typewriter/internal/executor"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/queryir"
	"github.com/roach88/typewriter/internal/store"
)

type user struct {
	ID   int64
	Name string
	Age  int
}

var (
	userID   = field.NewNumeric[int64]("id")
	userName = field.NewString("name")
	userAge  = field.NewNumeric[int]("age")
)

var userMapping = Mapping[user]{
	Encode: func(u user) []ir.IRValue {
		return []ir.IRValue{userID.Value(u.ID), ir.IRString(u.Name), userAge.Value(u.Age)}
	},
	Decode: func(rec executor.Record) (user, error) {
		m := rec.Map()
		id, ok1 := m["id"].(ir.IRInt)
		name, ok2 := m["name"].(ir.IRString)
		age, ok3 := m["age"].(ir.IRInt)
		if !ok1 || !ok2 || !ok3 {
			return user{}, fmt.Errorf("unexpected record %s", rec)
		}
		return user{ID: int64(id), Name: string(name), Age: int(age)}, nil
	},
}

func newRepo(t *testing.T) *Repository[user] {
	t.Helper()
	model, err := field.NewModel(nil, "users", userID, userName, userAge)
	require.NoError(t, err)

	s := store.NewMemoryStore()
	cfg := pool.DefaultConfig("users-" + t.Name())
	cfg.MinIdle = 0
	cfg.AcquireTimeout = time.Second
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := pool.New(cfg, s.Dial, pool.WithLogger(discard))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	repo := New(executor.NewDocument(model, p, executor.WithLogger(discard)), userMapping)
	for _, u := range []user{{1, "ann", 30}, {2, "bob", 25}, {3, "cy", 41}} {
		require.NoError(t, repo.Save(context.Background(), u))
	}
	return repo
}

func TestRestore(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	u, ok, err := repo.Restore(ctx, ir.IRInt(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user{2, "bob", 25}, u)

	_, ok, err = repo.Restore(ctx, ir.IRInt(9))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoreRejectsNullIdentity(t *testing.T) {
	repo := newRepo(t)
	_, _, err := repo.Restore(context.Background(), ir.IRNull{})
	assert.True(t, fault.IsInvalidQuery(err), "got %v", err)
}

func TestDelete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, ir.IRInt(1))
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, ir.IRInt(1))
	require.NoError(t, err)
	assert.False(t, deleted)

	_, ok, err := repo.Restore(ctx, ir.IRInt(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAndUpdate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	updated, err := repo.Update(ctx, user{2, "bobby", 26})
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.Update(ctx, user{7, "ghost", 1})
	require.NoError(t, err)
	assert.False(t, updated)

	u, ok, err := repo.Restore(ctx, ir.IRInt(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bobby", u.Name)

	_, ok, err = repo.Restore(ctx, ir.IRInt(7))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindBy(t *testing.T) {
	repo := newRepo(t)

	users, err := repo.FindBy(context.Background(), userAge.Gte(30),
		queryir.Sort{Field: userAge.Ref(), Direction: queryir.Desc})
	require.NoError(t, err)
	assert.Equal(t, []user{{3, "cy", 41}, {1, "ann", 30}}, users)
}
