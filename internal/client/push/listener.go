// Package push keeps a WebSocket connection to the server's event stream,
// refreshes records changed by other clients and relays presence.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/events"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Refresher reloads one record from the server.
type Refresher interface {
	Refresh(ctx context.Context, kind models.Kind, id string) error
}

type Option func(*Listener)

// WithRetry sets the pause between connection attempts.
func WithRetry(d time.Duration) Option {
	return func(l *Listener) { l.retry = d }
}

// WithPresenceHandler receives presence events of other clients.
func WithPresenceHandler(f func(events.Envelope)) Option {
	return func(l *Listener) { l.onPresence = f }
}

type Listener struct {
	endpoint  string
	clientID  string
	token     func() string
	refresher Refresher
	logger    logging.Logger
	retry     time.Duration

	onPresence func(events.Envelope)
	dialer     *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// New returns a listener for endpoint, e.g. ws://host:8080/events. token
// is asked for the current access token before every connection attempt.
func New(endpoint, clientID string, token func() string, r Refresher, logger logging.Logger, opts ...Option) *Listener {
	l := &Listener{
		endpoint:  endpoint,
		clientID:  clientID,
		token:     token,
		refresher: r,
		logger:    logger.With("module", "push"),
		retry:     5 * time.Second,
		dialer:    websocket.DefaultDialer,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Connected reports whether the event stream is open.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Run connects and handles events until ctx is done, reconnecting after
// failures.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.session(ctx); err != nil && ctx.Err() == nil {
			l.logger.Debug(ctx, "Event stream closed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retry):
		}
	}
}

func (l *Listener) dialURL(token string) (string, error) {
	u, err := url.Parse(l.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("client_id", l.clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l *Listener) session(ctx context.Context) error {
	token := l.token()
	if token == "" {
		return common.ErrorUnauthorized
	}
	addr, err := l.dialURL(token)
	if err != nil {
		return err
	}

	conn, _, err := l.dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnreachable, err)
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	l.logger.Info(ctx, "Event stream connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var e events.Envelope
		if err := conn.ReadJSON(&e); err != nil {
			return err
		}
		l.handle(ctx, e)
	}
}

func (l *Listener) handle(ctx context.Context, e events.Envelope) {
	if e.Originator == l.clientID {
		return
	}

	switch {
	case e.IsChange():
		err := l.refresher.Refresh(ctx, e.Entity, e.ID)
		switch {
		case err == nil:
			l.logger.Debug(ctx, "Refreshed after remote change", "type", e.Type, "entity", e.Entity, "id", e.ID)
		case errors.Is(err, common.ErrSyncInProgress):
			l.logger.Debug(ctx, "Change ignored during sync", "entity", e.Entity, "id", e.ID)
		default:
			l.logger.Warn(ctx, "Refresh failed", "entity", e.Entity, "id", e.ID, "error", err)
		}
	case e.IsPresence():
		if l.onPresence != nil {
			l.onPresence(e)
		}
	}
}

// SendPresence announces that this client started or stopped editing
// entityID. It fails with common.ErrUnreachable when not connected.
func (l *Listener) SendPresence(editing bool, entityID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return common.ErrUnreachable
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteJSON(events.Presence(editing, entityID, "", l.clientID))
}
