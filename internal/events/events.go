// Package events defines the messages exchanged over the push channel.
package events

import "github.com/dmitrijs2005/cuesync/internal/models"

// Type is the kind of event carried by an Envelope.
type Type string

const (
	Created Type = "created"
	Updated Type = "updated"
	Deleted Type = "deleted"

	EditingStart Type = "editing-start"
	EditingStop  Type = "editing-stop"
)

// Envelope is a push notification. Change events fill Entity and ID;
// presence events fill EntityID and UserName. Originator identifies the
// client whose action caused the event.
type Envelope struct {
	Type       Type        `json:"type"`
	Entity     models.Kind `json:"entity,omitempty"`
	ID         string      `json:"id,omitempty"`
	EntityID   string      `json:"entityId,omitempty"`
	UserName   string      `json:"userName,omitempty"`
	Originator string      `json:"originator"`
}

// Change builds a change notification.
func Change(t Type, kind models.Kind, id, originator string) Envelope {
	return Envelope{Type: t, Entity: kind, ID: id, Originator: originator}
}

// Presence builds an editing-start or editing-stop notification.
func Presence(editing bool, entityID, userName, originator string) Envelope {
	t := EditingStop
	if editing {
		t = EditingStart
	}
	return Envelope{Type: t, EntityID: entityID, UserName: userName, Originator: originator}
}

func (e Envelope) IsChange() bool {
	return e.Type == Created || e.Type == Updated || e.Type == Deleted
}

func (e Envelope) IsPresence() bool {
	return e.Type == EditingStart || e.Type == EditingStop
}
