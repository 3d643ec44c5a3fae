// Package journal defines the mutation journal kept by the client while it
// is the authority for its own data, and the reduction applied to it
// before replay.
package journal

import (
	"time"

	"github.com/dmitrijs2005/cuesync/internal/models"
)

type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	return o == OpInsert || o == OpUpdate || o == OpDelete
}

// Entry is one recorded local operation.
//
// Payload is the record after the operation and is nil for deletes. Base is
// the record before an update and is the three-way merge base at replay.
type Entry struct {
	ID         int64
	Entity     models.Kind
	EntityID   string
	Operation  Operation
	Payload    models.Record
	Base       models.Record
	RecordedAt time.Time
	Synced     bool
}

// Key identifies the entity an entry touches.
type Key struct {
	Entity   models.Kind
	EntityID string
}

func (e Entry) Key() Key {
	return Key{Entity: e.Entity, EntityID: e.EntityID}
}
