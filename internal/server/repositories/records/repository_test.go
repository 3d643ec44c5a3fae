package records

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestListFilter(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := ListFilter(nil, true)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = ListFilter(nil, false)
	assert.Equal(t, " WHERE NOT deleted", where)
	assert.Empty(t, args)

	where, args = ListFilter(&since, false)
	assert.Equal(t, " WHERE updated_at > $1 AND NOT deleted", where)
	assert.Equal(t, []any{since}, args)

	where, _ = ListFilter(&since, true)
	assert.Equal(t, " WHERE updated_at > $1", where)
}

func TestDBError(t *testing.T) {
	err := DBError(&pgconn.PgError{Code: "23503", ConstraintName: "cues_character_id_fkey"})
	assert.ErrorIs(t, err, common.ErrorMissingParent)

	err = DBError(errors.New("conn reset"))
	assert.NotErrorIs(t, err, common.ErrorMissingParent)
	assert.Contains(t, err.Error(), "db error")
}

func TestExpectOne(t *testing.T) {
	assert.NoError(t, ExpectOne(1, nil))
	assert.ErrorIs(t, ExpectOne(0, nil), common.ErrorNotFound)
	assert.Error(t, ExpectOne(0, errors.New("x")))
}
