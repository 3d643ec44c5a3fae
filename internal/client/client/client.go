package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
)

// Client is the authoritative store as seen from a client.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, userName string, salt []byte, verifier []byte) error
	GetSalt(ctx context.Context, userName string) ([]byte, error)
	Login(ctx context.Context, userName string, verifier []byte) error
	AccessToken() string
	SetCredentials(userName string, verifier []byte)

	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	List(ctx context.Context, kind models.Kind, since *time.Time, includeDeleted bool) ([]models.Record, error)
	Create(ctx context.Context, rec models.Record) (models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, req merge.Request) (*merge.Outcome, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}
