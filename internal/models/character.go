package models

import (
	"strings"
	"time"
)

// Character is a speaking part. Cues reference it by id.
type Character struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted,omitempty"`
}

func (c *Character) Kind() Kind             { return KindCharacter }
func (c *Character) RecordID() string       { return c.ID }
func (c *Character) Version() time.Time     { return c.UpdatedAt }
func (c *Character) SetVersion(t time.Time) { c.UpdatedAt = t }
func (c *Character) IsDeleted() bool        { return c.Deleted }
func (c *Character) SetDeleted(d bool)      { c.Deleted = d }

func (c *Character) Fields() Fields {
	return Fields{
		"name":  c.Name,
		"actor": c.Actor,
		"notes": c.Notes,
	}
}

func (c *Character) ApplyFields(f Fields) error {
	for k, v := range f {
		switch k {
		case "name":
			c.Name = v
		case "actor":
			c.Actor = v
		case "notes":
			c.Notes = v
		default:
			return invalid("unknown character field %q", k)
		}
	}
	return nil
}

func (c *Character) Validate() error {
	if c.ID == "" {
		return invalid("character id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid("character name is required")
	}
	return nil
}

func (c *Character) Clone() Record {
	cp := *c
	return &cp
}
