package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	old := newID
	newID = func() string { return "id-42" }
	t.Cleanup(func() { newID = old })

	return NewPostgresRepository(db), mock
}

const insertQ = `(?s)^INSERT INTO users \(id, username, salt, verifier\).*ON CONFLICT \(username\) DO NOTHING$`

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).
		WithArgs("id-42", "dana", []byte("salt"), []byte("verifier")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := repo.Create(context.Background(), &models.User{UserName: "dana", Salt: []byte("salt"), Verifier: []byte("verifier")})
	require.NoError(t, err)
	assert.Equal(t, "id-42", u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UsernameTaken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Create(context.Background(), &models.User{UserName: "dana"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{UserName: "dana"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestGetUserByLogin(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, username, verifier, salt, created_at FROM users WHERE username = \$1`).
		WithArgs("dana").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "verifier", "salt", "created_at"}).
			AddRow("u1", "dana", []byte("v"), []byte("s"), created))

	u, err := repo.GetUserByLogin(context.Background(), "dana")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: "u1", UserName: "dana", Verifier: []byte("v"), Salt: []byte("s"), CreatedAt: created}, u)
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByLogin(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
