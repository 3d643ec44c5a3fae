package journal

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/client/journal"
	"github.com/dmitrijs2005/cuesync/internal/client/migrations"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/google/go-cmp/cmp"
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

var at = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRecordAndUnsynced_RoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	payload := &models.Cue{ID: "c1", Dialogue: "new", Status: models.StatusPrinted, UpdatedAt: at}
	base := &models.Cue{ID: "c1", Dialogue: "old", Status: models.StatusSpotted, UpdatedAt: at.Add(-time.Hour)}

	id, err := r.Record(ctx, journal.Entry{Entity: models.KindCue, EntityID: "c1", Operation: journal.OpUpdate,
		Payload: payload, Base: base, RecordedAt: at})
	require.NoError(t, err)
	_, err = r.Record(ctx, journal.Entry{Entity: models.KindCue, EntityID: "c1", Operation: journal.OpDelete,
		RecordedAt: at.Add(time.Second)})
	require.NoError(t, err)

	got, err := r.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, id, got[0].ID)
	assert.Empty(t, cmp.Diff(payload, got[0].Payload))
	assert.Empty(t, cmp.Diff(base, got[0].Base))
	assert.Equal(t, journal.OpDelete, got[1].Operation)
	assert.Nil(t, got[1].Payload)
}

func TestUnsynced_OrderedByRecordedAt(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for i, ts := range []time.Time{at.Add(2 * time.Second), at, at.Add(time.Second)} {
		_, err := r.Record(ctx, journal.Entry{Entity: models.KindCharacter, EntityID: string(rune('a' + i)),
			Operation: journal.OpInsert, Payload: &models.Character{Name: "x"}, RecordedAt: ts})
		require.NoError(t, err)
	}

	got, err := r.Unsynced(ctx)
	require.NoError(t, err)
	var ids []string
	for _, e := range got {
		ids = append(ids, e.EntityID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestMarkSyncedAndPurge(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	var ids []int64
	for _, id := range []string{"a", "b", "c"} {
		n, err := r.Record(ctx, journal.Entry{Entity: models.KindCharacter, EntityID: id,
			Operation: journal.OpInsert, Payload: &models.Character{ID: id, Name: id}})
		require.NoError(t, err)
		ids = append(ids, n)
	}

	require.NoError(t, r.MarkSynced(ctx, ids[:2]))
	require.NoError(t, r.MarkSynced(ctx, nil))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err := r.PendingKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[journal.Key]bool{{Entity: models.KindCharacter, EntityID: "c"}: true}, keys)

	purged, err := r.PurgeSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	rest, err := r.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].EntityID)
}

func TestUnsynced_CorruptPayload(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO journal (entity, entity_id, operation, payload, recorded_at) VALUES ('cue', 'c1', 'insert', 'not json', 1)`)
	require.NoError(t, err)

	_, err = r.Unsynced(ctx)
	assert.ErrorIs(t, err, common.ErrJournalCorrupt)
}

func TestUnsynced_UnknownEntity(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO journal (entity, entity_id, operation, recorded_at) VALUES ('prop', 'p1', 'delete', 1)`)
	require.NoError(t, err)

	_, err = NewSQLiteRepository(db).Unsynced(context.Background())
	assert.ErrorIs(t, err, common.ErrJournalCorrupt)
}

func TestRecord_RejectsUnknownOperation(t *testing.T) {
	_, err := NewSQLiteRepository(setupDB(t)).Record(context.Background(),
		journal.Entry{Entity: models.KindCue, EntityID: "c1", Operation: "upsert"})
	assert.ErrorIs(t, err, common.ErrorValidation)
}
