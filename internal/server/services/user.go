// Package services contains server-side business logic. This file
// implements UserService: registration, login and access tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/cryptox"
	"github.com/dmitrijs2005/cuesync/internal/server/auth"
	"github.com/dmitrijs2005/cuesync/internal/server/config"
	"github.com/dmitrijs2005/cuesync/internal/server/models"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/repomanager"
)

type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register creates a user from a client-computed salt and verifier.
func (s *UserService) Register(ctx context.Context, userName string, salt, verifier []byte) (*models.User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || len(salt) == 0 || len(verifier) == 0 {
		return nil, fmt.Errorf("%w: username, salt and verifier are required", common.ErrorValidation)
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{UserName: userName, Salt: salt, Verifier: verifier})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// GetSalt returns the user's salt, or a random one for unknown users so
// that the answer does not reveal whether the account exists.
func (s *UserService) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.GenerateRandByteArray(cryptox.SaltSize), nil
		}
		return nil, common.ErrorInternal
	}
	return user.Salt, nil
}

// Login checks the verifier and returns a signed access token.
func (s *UserService) Login(ctx context.Context, userName string, verifierCandidate []byte) (string, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}
	if !cryptox.VerifiersEqual(user.Verifier, verifierCandidate) {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(auth.Identity{UserID: user.ID, UserName: user.UserName}, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// Authenticate validates an access token.
func (s *UserService) Authenticate(token string) (auth.Identity, error) {
	return auth.ParseToken(token, s.jwtSecret)
}
