package records

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/timex"
)

type SQLiteCueRepository struct {
	table
}

func NewSQLiteCueRepository(db dbx.DBTX) *SQLiteCueRepository {
	return &SQLiteCueRepository{table{
		db:      db,
		name:    "cues",
		columns: "id, character_id, reel, timecode_in, timecode_out, dialogue, notes, status, priority, updated_at",
		scan:    scanCue,
	}}
}

func scanCue(row scanner) (models.Record, error) {
	c := &models.Cue{}
	var status string
	var v int64
	if err := row.Scan(&c.ID, &c.CharacterID, &c.Reel, &c.TimecodeIn, &c.TimecodeOut,
		&c.Dialogue, &c.Notes, &status, &c.Priority, &v); err != nil {
		return nil, err
	}
	c.Status = models.CueStatus(status)
	c.UpdatedAt = timex.FromMicros(v)
	return c, nil
}

func (r *SQLiteCueRepository) Upsert(ctx context.Context, rec models.Record) error {
	c, ok := rec.(*models.Cue)
	if !ok {
		return fmt.Errorf("%w: expected cue, got %s", common.ErrorValidation, rec.Kind())
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cues (id, character_id, reel, timecode_in, timecode_out, dialogue, notes, status, priority, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET character_id = excluded.character_id, reel = excluded.reel,
			timecode_in = excluded.timecode_in, timecode_out = excluded.timecode_out,
			dialogue = excluded.dialogue, notes = excluded.notes, status = excluded.status,
			priority = excluded.priority, updated_at = excluded.updated_at
	`, c.ID, c.CharacterID, c.Reel, c.TimecodeIn, c.TimecodeOut, c.Dialogue, c.Notes,
		string(c.Status), c.Priority, timex.Micros(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert cue: %w", err)
	}
	return nil
}
