// Package records declares the storage contract shared by the character
// and cue tables of the authoritative store.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository stores records of one kind. Deletes are soft: a tombstone
// keeps the id and carries the version of the delete.
type Repository interface {
	// Get returns a live record or common.ErrorNotFound.
	Get(ctx context.Context, id string) (models.Record, error)
	// GetForUpdate returns the row including tombstones and locks it for
	// the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (models.Record, error)
	// List returns records ordered by updated_at. With since set only
	// records changed after it are returned.
	List(ctx context.Context, since *time.Time, includeDeleted bool) ([]models.Record, error)
	// Insert fails with common.ErrorAlreadyExists if the id is taken,
	// tombstones included.
	Insert(ctx context.Context, rec models.Record) error
	// Update overwrites a live record or fails with common.ErrorNotFound.
	Update(ctx context.Context, rec models.Record) error
	MarkDeleted(ctx context.Context, id string, version time.Time) error
	// MaxVersion returns the greatest updated_at in the table.
	MaxVersion(ctx context.Context) (time.Time, error)
}

const foreignKeyViolation = "23503"

// DBError wraps a driver error, translating constraint violations into
// sentinel errors.
func DBError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s", common.ErrorMissingParent, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}

// ListFilter builds the WHERE clause shared by List implementations.
func ListFilter(since *time.Time, includeDeleted bool) (string, []any) {
	var conds []string
	var args []any
	if since != nil {
		args = append(args, since.UTC())
		conds = append(conds, fmt.Sprintf("updated_at > $%d", len(args)))
	}
	if !includeDeleted {
		conds = append(conds, "NOT deleted")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Rows is the part of sql.Row and sql.Rows used by scanners.
type Rows interface {
	Scan(dest ...any) error
}

// ExpectOne turns a zero RowsAffected into common.ErrorNotFound.
func ExpectOne(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
