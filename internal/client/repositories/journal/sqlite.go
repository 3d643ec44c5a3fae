// Package journal persists the mutation journal in SQLite.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/client/journal"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/timex"
)

type Repository interface {
	// Record appends e with synced = false and returns its id.
	Record(ctx context.Context, e journal.Entry) (int64, error)
	// Unsynced returns pending entries ordered by recorded_at, then id.
	// An entry that cannot be decoded fails the whole read with
	// common.ErrJournalCorrupt.
	Unsynced(ctx context.Context) ([]journal.Entry, error)
	MarkSynced(ctx context.Context, ids []int64) error
	// PurgeSynced deletes synced entries and returns how many were removed.
	PurgeSynced(ctx context.Context) (int64, error)
	// Count returns the number of unsynced entries.
	Count(ctx context.Context) (int, error)
	// PendingKeys returns the entities with unsynced entries.
	PendingKeys(ctx context.Context) (map[journal.Key]bool, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

var _ Repository = (*SQLiteRepository)(nil)

func encode(rec models.Record) ([]byte, error) {
	if rec == nil {
		return nil, nil
	}
	return models.Encode(rec)
}

func (r *SQLiteRepository) Record(ctx context.Context, e journal.Entry) (int64, error) {
	if !e.Operation.Valid() {
		return 0, fmt.Errorf("%w: operation %q", common.ErrorValidation, e.Operation)
	}
	payload, err := encode(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}
	base, err := encode(e.Base)
	if err != nil {
		return 0, fmt.Errorf("failed to encode base: %w", err)
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO journal (entity, entity_id, operation, payload, base, recorded_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, string(e.Entity), e.EntityID, string(e.Operation), payload, base, timex.Micros(e.RecordedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to append journal entry: %w", err)
	}
	return res.LastInsertId()
}

func decode(kind models.Kind, data []byte) (models.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return models.Decode(kind, data)
}

func (r *SQLiteRepository) Unsynced(ctx context.Context) ([]journal.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity, entity_id, operation, payload, base, recorded_at
		FROM journal WHERE synced = 0 ORDER BY recorded_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to select journal: %w", err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var (
			e             journal.Entry
			entity, op    string
			payload, base []byte
			recordedAt    int64
		)
		if err := rows.Scan(&e.ID, &entity, &e.EntityID, &op, &payload, &base, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Entity = models.Kind(entity)
		e.Operation = journal.Operation(op)
		e.RecordedAt = timex.FromMicros(recordedAt)

		if !e.Entity.Valid() || !e.Operation.Valid() {
			return nil, fmt.Errorf("%w: entry %d has entity %q operation %q", common.ErrJournalCorrupt, e.ID, entity, op)
		}
		if e.Payload, err = decode(e.Entity, payload); err != nil {
			return nil, fmt.Errorf("%w: entry %d payload: %v", common.ErrJournalCorrupt, e.ID, err)
		}
		if e.Base, err = decode(e.Entity, base); err != nil {
			return nil, fmt.Errorf("%w: entry %d base: %v", common.ErrJournalCorrupt, e.ID, err)
		}
		if e.Operation != journal.OpDelete && e.Payload == nil {
			return nil, fmt.Errorf("%w: entry %d has no payload", common.ErrJournalCorrupt, e.ID)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	if _, err := r.db.ExecContext(ctx, `UPDATE journal SET synced = 1 WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to mark journal entries synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeSynced(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM journal WHERE synced = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge journal: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal WHERE synced = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) PendingKeys(ctx context.Context) (map[journal.Key]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT entity, entity_id FROM journal WHERE synced = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending entities: %w", err)
	}
	defer rows.Close()

	out := map[journal.Key]bool{}
	for rows.Next() {
		var entity, id string
		if err := rows.Scan(&entity, &id); err != nil {
			return nil, fmt.Errorf("failed to scan pending entity: %w", err)
		}
		out[journal.Key{Entity: models.Kind(entity), EntityID: id}] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending entities: %w", err)
	}
	return out, nil
}
