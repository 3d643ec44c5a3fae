// Package cues stores cue records in PostgreSQL.
package cues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/records"
)

const columns = `id, COALESCE(character_id, ''), reel, timecode_in, timecode_out, dialogue, notes, status, priority, updated_at, deleted`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ records.Repository = (*PostgresRepository)(nil)

func scan(row records.Rows) (*models.Cue, error) {
	c := &models.Cue{}
	var status string
	if err := row.Scan(&c.ID, &c.CharacterID, &c.Reel, &c.TimecodeIn, &c.TimecodeOut,
		&c.Dialogue, &c.Notes, &status, &c.Priority, &c.UpdatedAt, &c.Deleted); err != nil {
		return nil, err
	}
	c.Status = models.CueStatus(status)
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (models.Record, error) {
	c, err := scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (models.Record, error) {
	return r.get(ctx, `SELECT `+columns+` FROM cues WHERE id = $1 AND NOT deleted`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (models.Record, error) {
	return r.get(ctx, `SELECT `+columns+` FROM cues WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) List(ctx context.Context, since *time.Time, includeDeleted bool) ([]models.Record, error) {
	where, args := records.ListFilter(since, includeDeleted)
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM cues`+where+` ORDER BY updated_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec models.Record) error {
	c, ok := rec.(*models.Cue)
	if !ok {
		return fmt.Errorf("%w: expected cue, got %s", common.ErrorValidation, rec.Kind())
	}

	query := `INSERT INTO cues (id, character_id, reel, timecode_in, timecode_out, dialogue, notes, status, priority, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, c.ID, c.CharacterID, c.Reel, c.TimecodeIn, c.TimecodeOut,
		c.Dialogue, c.Notes, string(c.Status), c.Priority, c.UpdatedAt)
	if err != nil {
		return records.DBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec models.Record) error {
	c, ok := rec.(*models.Cue)
	if !ok {
		return fmt.Errorf("%w: expected cue, got %s", common.ErrorValidation, rec.Kind())
	}

	query := `UPDATE cues SET character_id = NULLIF($2, ''), reel = $3, timecode_in = $4, timecode_out = $5,
		dialogue = $6, notes = $7, status = $8, priority = $9, updated_at = $10
		WHERE id = $1 AND NOT deleted`

	res, err := r.db.ExecContext(ctx, query, c.ID, c.CharacterID, c.Reel, c.TimecodeIn, c.TimecodeOut,
		c.Dialogue, c.Notes, string(c.Status), c.Priority, c.UpdatedAt)
	if err != nil {
		return records.DBError(err)
	}
	return records.ExpectOne(res.RowsAffected())
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, id string, version time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cues SET deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT deleted`, id, version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return records.ExpectOne(res.RowsAffected())
}

func (r *PostgresRepository) MaxVersion(ctx context.Context) (time.Time, error) {
	var v sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM cues`).Scan(&v); err != nil {
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return v.Time.UTC(), nil
}
