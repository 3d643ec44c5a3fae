// Package characters stores character records in PostgreSQL.
package characters

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

const columns = `id, name, actor, notes, updated_at, deleted`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ records.Repository = (*PostgresRepository)(nil)

func scan(row records.Rows) (*models.Character, error) {
	c := &models.Character{}
	if err := row.Scan(&c.ID, &c.Name, &c.Actor, &c.Notes, &c.UpdatedAt, &c.Deleted); err != nil {
		return nil, err
	}
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
	return r.get(ctx, `SELECT `+columns+` FROM characters WHERE id = $1 AND NOT deleted`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (models.Record, error) {
	return r.get(ctx, `SELECT `+columns+` FROM characters WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) List(ctx context.Context, since *time.Time, includeDeleted bool) ([]models.Record, error) {
	where, args := records.ListFilter(since, includeDeleted)
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM characters`+where+` ORDER BY updated_at, id`, args...)
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
	c, ok := rec.(*models.Character)
	if !ok {
		return fmt.Errorf("%w: expected character, got %s", common.ErrorValidation, rec.Kind())
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO characters (id, name, actor, notes, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		c.ID, c.Name, c.Actor, c.Notes, c.UpdatedAt)
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
	c, ok := rec.(*models.Character)
	if !ok {
		return fmt.Errorf("%w: expected character, got %s", common.ErrorValidation, rec.Kind())
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE characters SET name = $2, actor = $3, notes = $4, updated_at = $5 WHERE id = $1 AND NOT deleted`,
		c.ID, c.Name, c.Actor, c.Notes, c.UpdatedAt)
	if err != nil {
		return records.DBError(err)
	}
	return records.ExpectOne(res.RowsAffected())
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, id string, version time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE characters SET deleted = TRUE, updated_at = $2 WHERE id = $1 AND NOT deleted`, id, version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return records.ExpectOne(res.RowsAffected())
}

func (r *PostgresRepository) MaxVersion(ctx context.Context) (time.Time, error) {
	var v sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM characters`).Scan(&v); err != nil {
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return v.Time.UTC(), nil
}
