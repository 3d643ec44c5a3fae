package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/client/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k1", []byte{0x01, 0x02}))

	v, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, v)

	require.NoError(t, r.Set(ctx, "k1", []byte("new")))
	v, err = r.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestGet_MissingReturnsNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDelete_SeveralKeys(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, r.Set(ctx, k, []byte(k)))
	}

	require.NoError(t, r.Delete(ctx, "a", "b", "missing"))

	v, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = r.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), v)
}

func TestTime_RoundTripsAtMicrosecondResolution(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	got, err := r.GetTime(ctx, "last_sync")
	require.NoError(t, err)
	assert.Nil(t, got)

	ts := time.Date(2026, 4, 2, 8, 30, 0, 654321000, time.UTC)
	require.NoError(t, r.SetTime(ctx, "last_sync", ts))

	got, err = r.GetTime(ctx, "last_sync")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, ts.Equal(*got))
}

func TestGetTime_Malformed(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "last_sync", []byte("yesterday")))

	_, err := r.GetTime(ctx, "last_sync")
	assert.Error(t, err)
}

func TestGet_DBErrorWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	_, err := r.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get metadata[k]")
}
