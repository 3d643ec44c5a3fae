// Package hub implements the push channel: a single goroutine owns every
// WebSocket connection and the presence map, and all changes reach it as
// commands on a channel.
package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/events"
	"github.com/dmitrijs2005/cuesync/internal/logging"
)

const (
	commandBuffer = 256
	sendBuffer    = 64
)

type client struct {
	id       string
	userName string
	send     chan []byte
}

type presenceKey struct {
	entityID   string
	originator string
}

type presenceEntry struct {
	env  events.Envelope
	seen time.Time
}

// state is only touched by the Run goroutine.
type state struct {
	clients  map[string]*client
	presence map[presenceKey]presenceEntry
}

// Hub fans change and presence events out to connected clients.
type Hub struct {
	commands      chan func(*state)
	done          chan struct{}
	ttl           time.Duration
	sweepInterval time.Duration
	logger        logging.Logger
	now           func() time.Time
}

// New creates a hub. Presence entries not refreshed within ttl are
// expired on the next sweep.
func New(ttl, sweepInterval time.Duration, logger logging.Logger) *Hub {
	return &Hub{
		commands:      make(chan func(*state), commandBuffer),
		done:          make(chan struct{}),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// Run owns the hub state until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	st := &state{
		clients:  map[string]*client{},
		presence: map[presenceKey]presenceEntry{},
	}
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-h.commands:
			cmd(st)
		case <-ticker.C:
			h.sweep(st)
		case <-ctx.Done():
			for id, c := range st.clients {
				close(c.send)
				delete(st.clients, id)
			}
			close(h.done)
			return
		}
	}
}

// submit hands cmd to the Run goroutine. It reports false if the hub has
// stopped or its queue is full.
func (h *Hub) submit(cmd func(*state)) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.commands <- cmd:
		return true
	case <-h.done:
		return false
	default:
		return false
	}
}

// Publish broadcasts a change event to every client except its originator.
func (h *Hub) Publish(e events.Envelope) {
	if !h.submit(func(st *state) { h.broadcast(st, e) }) {
		h.logger.Warn(context.Background(), "Event dropped", "type", e.Type, "id", e.ID)
	}
}

func (h *Hub) register(c *client) bool {
	return h.submit(func(st *state) {
		if old, ok := st.clients[c.id]; ok {
			close(old.send)
		}
		st.clients[c.id] = c
	})
}

func (h *Hub) unregister(c *client) {
	h.submit(func(st *state) {
		if cur, ok := st.clients[c.id]; !ok || cur != c {
			return
		}
		delete(st.clients, c.id)
		close(c.send)
		for key, entry := range st.presence {
			if key.originator == c.id {
				delete(st.presence, key)
				h.broadcast(st, events.Presence(false, entry.env.EntityID, entry.env.UserName, c.id))
			}
		}
	})
}

// presence records an editing-start/stop frame sent by a client and
// relays it.
func (h *Hub) presence(e events.Envelope) {
	h.submit(func(st *state) {
		key := presenceKey{entityID: e.EntityID, originator: e.Originator}
		if e.Type == events.EditingStart {
			st.presence[key] = presenceEntry{env: e, seen: h.now()}
		} else {
			delete(st.presence, key)
		}
		h.broadcast(st, e)
	})
}

func (h *Hub) sweep(st *state) {
	now := h.now()
	for key, entry := range st.presence {
		if now.Sub(entry.seen) < h.ttl {
			continue
		}
		delete(st.presence, key)
		h.broadcast(st, events.Presence(false, entry.env.EntityID, entry.env.UserName, key.originator))
	}
}

func (h *Hub) broadcast(st *state, e events.Envelope) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error(context.Background(), "Encode event", "error", err)
		return
	}
	for id, c := range st.clients {
		if id == e.Originator {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn(context.Background(), "Client too slow, disconnecting", "client_id", id)
			delete(st.clients, id)
			close(c.send)
		}
	}
}

// Editing returns the active presence entries. It blocks until the Run
// goroutine answers.
func (h *Hub) Editing(ctx context.Context) []events.Envelope {
	reply := make(chan []events.Envelope, 1)
	ok := h.submit(func(st *state) {
		out := make([]events.Envelope, 0, len(st.presence))
		for _, entry := range st.presence {
			out = append(out, entry.env)
		}
		reply <- out
	})
	if !ok {
		return nil
	}
	select {
	case out := <-reply:
		return out
	case <-ctx.Done():
		return nil
	}
}
