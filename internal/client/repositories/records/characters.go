package records

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/timex"
)

type SQLiteCharacterRepository struct {
	table
}

func NewSQLiteCharacterRepository(db dbx.DBTX) *SQLiteCharacterRepository {
	return &SQLiteCharacterRepository{table{
		db:      db,
		name:    "characters",
		columns: "id, name, actor, notes, updated_at",
		scan:    scanCharacter,
	}}
}

func scanCharacter(row scanner) (models.Record, error) {
	c := &models.Character{}
	var v int64
	if err := row.Scan(&c.ID, &c.Name, &c.Actor, &c.Notes, &v); err != nil {
		return nil, err
	}
	c.UpdatedAt = timex.FromMicros(v)
	return c, nil
}

func (r *SQLiteCharacterRepository) Upsert(ctx context.Context, rec models.Record) error {
	c, ok := rec.(*models.Character)
	if !ok {
		return fmt.Errorf("%w: expected character, got %s", common.ErrorValidation, rec.Kind())
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO characters (id, name, actor, notes, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, actor = excluded.actor,
			notes = excluded.notes, updated_at = excluded.updated_at
	`, c.ID, c.Name, c.Actor, c.Notes, timex.Micros(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert character: %w", err)
	}
	return nil
}
