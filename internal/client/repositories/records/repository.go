// Package records keeps the local copies of characters and cues in SQLite.
// Versions are stored as UTC microseconds.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/timex"
)

// Repository is a dumb keyed table of one record kind.
type Repository interface {
	// Get returns the record or common.ErrorNotFound.
	Get(ctx context.Context, id string) (models.Record, error)
	// List returns records ordered by id. With since set only records
	// whose version is greater are returned.
	List(ctx context.Context, since *time.Time) ([]models.Record, error)
	// Upsert inserts rec or overwrites every column of the stored row.
	Upsert(ctx context.Context, rec models.Record) error
	// Delete removes the row and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	MaxVersion(ctx context.Context) (time.Time, error)
}

// ForKind returns the repository for kind bound to db.
func ForKind(kind models.Kind, db dbx.DBTX) (Repository, error) {
	switch kind {
	case models.KindCharacter:
		return NewSQLiteCharacterRepository(db), nil
	case models.KindCue:
		return NewSQLiteCueRepository(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", common.ErrorValidation, kind)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

// table holds the statements shared by both kinds.
type table struct {
	db      dbx.DBTX
	name    string
	columns string
	scan    func(scanner) (models.Record, error)
}

func (t *table) Get(ctx context.Context, id string) (models.Record, error) {
	rec, err := t.scan(t.db.QueryRowContext(ctx, `SELECT `+t.columns+` FROM `+t.name+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", t.name, id, err)
	}
	return rec, nil
}

func (t *table) List(ctx context.Context, since *time.Time) ([]models.Record, error) {
	query := `SELECT ` + t.columns + ` FROM ` + t.name
	var args []any
	if since != nil {
		query += ` WHERE updated_at > ?`
		args = append(args, timex.Micros(*since))
	}
	query += ` ORDER BY id`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", t.name, err)
	}
	return out, nil
}

func (t *table) Delete(ctx context.Context, id string) (bool, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %s: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (t *table) MaxVersion(ctx context.Context) (time.Time, error) {
	var v sql.NullInt64
	if err := t.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM `+t.name).Scan(&v); err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s versions: %w", t.name, err)
	}
	if !v.Valid {
		return time.Time{}, nil
	}
	return timex.FromMicros(v.Int64), nil
}
