// Package repomanager wires the PostgreSQL repositories together with the
// goose migrations that create their tables.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/server/migrations"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/characters"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/cues"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/records"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Records(kind models.Kind, db dbx.DBTX) records.Repository {
	switch kind {
	case models.KindCharacter:
		return characters.NewPostgresRepository(db)
	case models.KindCue:
		return cues.NewPostgresRepository(db)
	default:
		return nil
	}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
