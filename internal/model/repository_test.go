package model

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.sqlite"), clockwork.NewFakeClockAt(fixed))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Migrate(context.Background()))

	return repo
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "", nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestMigrateIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestLogAppendAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	clock := clockwork.NewFakeClockAt(fixed)
	repo.Clock = clock

	first, err := repo.LogAppend(ctx, "Kicked someone")
	require.NoError(t, err)
	assert.Equal(t, "Kicked someone", first.Action)
	assert.Equal(t, fixed, first.Timestamp)

	clock.Advance(time.Minute)

	second, err := repo.LogAppend(ctx, "Banned someone")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, fixed.Add(time.Minute), second.Timestamp)

	entries, err := repo.LogList(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, "Banned someone", entries[0].Action)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.True(t, entries[1].Timestamp.Equal(fixed))
}

func TestLogListLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := repo.LogAppend(ctx, fmt.Sprintf("action %d", i))
		require.NoError(t, err)
	}

	entries, err := repo.LogList(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultLogLimit)
	assert.Equal(t, "action 59", entries[0].Action)

	entries, err = repo.LogList(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestLogAppendEmpty(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.LogAppend(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyAction)
}

func TestConfigGetSet(t *testing.T) {
	repo := newTestRepository(t)

	v, err := repo.ConfigGet("1", "global", "prefix")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, repo.ConfigSet("1", "global", "prefix", "!"))
	require.NoError(t, repo.ConfigSet("1", "global", "prefix", "?"))

	v, err = repo.ConfigGet("1", "global", "prefix")
	require.NoError(t, err)
	assert.Equal(t, "?", v)

	v, err = repo.ConfigGet("2", "global", "prefix")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
