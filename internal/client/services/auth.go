// Package services contains application services of the CueSync client.
// This file defines the authentication service: online and offline login,
// registration, the persistent client identifier and housekeeping of the
// locally cached credentials.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cuesync/internal/client/client"
	"github.com/dmitrijs2005/cuesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/cryptox"
	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/google/uuid"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - OnlineLogin: authenticate against the server and cache credentials.
//   - OfflineLogin: verify credentials against the cached verifier.
//   - Register: create a new user on the server.
//   - Logout: wipe the cached credentials.
type AuthService interface {
	OnlineLogin(ctx context.Context, userName string, password []byte) error
	OfflineLogin(ctx context.Context, userName string, password []byte) error
	Register(ctx context.Context, userName string, password []byte) error
	Logout(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
}

func NewAuthService(client client.Client, db *sql.DB) AuthService {
	return &authService{client: client, db: db}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

// OfflineLogin derives a verifier from password and the cached salt and
// compares it to the cached verifier. Without cached data, or for another
// user, it fails with common.ErrorUnauthorized. On success the client gets
// the credentials so it can log in once the server is reachable.
func (a *authService) OfflineLogin(ctx context.Context, userName string, password []byte) error {
	repo := a.getMetadataRepo()

	savedUserName, err := repo.Get(ctx, common.MetaUserName)
	if err != nil {
		return err
	}
	if savedUserName == nil || string(savedUserName) != userName {
		return common.ErrorUnauthorized
	}

	salt, err := repo.Get(ctx, common.MetaSalt)
	if err != nil {
		return err
	}
	verifier, err := repo.Get(ctx, common.MetaVerifier)
	if err != nil {
		return err
	}
	if salt == nil || verifier == nil {
		return common.ErrorUnauthorized
	}

	candidate := cryptox.VerifierFor(password, salt)
	if !cryptox.VerifiersEqual(verifier, candidate) {
		return common.ErrorUnauthorized
	}
	a.client.SetCredentials(userName, candidate)
	return nil
}

// OnlineLogin authenticates against the server and caches username, salt
// and verifier for later offline logins.
func (a *authService) OnlineLogin(ctx context.Context, userName string, password []byte) error {
	salt, err := a.client.GetSalt(ctx, userName)
	if err != nil {
		return fmt.Errorf("get salt error: %w", err)
	}

	verifier := cryptox.VerifierFor(password, salt)
	if err := a.client.Login(ctx, userName, verifier); err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	if err := a.saveOfflineData(ctx, userName, salt, verifier); err != nil {
		return fmt.Errorf("offline data saving error: %w", err)
	}
	return nil
}

func (a *authService) saveOfflineData(ctx context.Context, userName string, salt []byte, verifier []byte) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, common.MetaUserName, []byte(userName)); err != nil {
			return err
		}
		if err := repo.Set(ctx, common.MetaSalt, salt); err != nil {
			return err
		}
		return repo.Set(ctx, common.MetaVerifier, verifier)
	})
}

// Register creates a new account with a fresh random salt.
func (a *authService) Register(ctx context.Context, userName string, password []byte) error {
	salt, err := cryptox.NewSalt()
	if err != nil {
		return err
	}
	return a.client.Register(ctx, userName, salt, cryptox.VerifierFor(password, salt))
}

// EnsureClientID returns the client identifier stored in the local
// database, creating it on first use.
func EnsureClientID(ctx context.Context, db dbx.DBTX) (string, error) {
	repo := metadata.NewSQLiteRepository(db)

	id, err := repo.Get(ctx, common.MetaClientID)
	if err != nil {
		return "", err
	}
	if id != nil {
		return string(id), nil
	}

	fresh := uuid.NewString()
	if err := repo.Set(ctx, common.MetaClientID, []byte(fresh)); err != nil {
		return "", err
	}
	return fresh, nil
}

// Logout wipes the cached credentials. Records and the journal are kept.
func (a *authService) Logout(ctx context.Context) error {
	return a.getMetadataRepo().Delete(ctx, common.MetaUserName, common.MetaSalt, common.MetaVerifier)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
