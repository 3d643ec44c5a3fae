// Package models defines the record kinds kept in sync between clients and
// the authoritative server, and the version clock that orders their edits.
package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
)

// Kind names a record type.
type Kind string

const (
	KindCharacter Kind = "character"
	KindCue       Kind = "cue"
)

// Kinds lists every kind in replay order: parents before dependents.
var Kinds = []Kind{KindCharacter, KindCue}

func (k Kind) Valid() bool {
	return k == KindCharacter || k == KindCue
}

// IsParent reports whether records of other kinds may reference k.
func (k Kind) IsParent() bool {
	return k == KindCharacter
}

// Fields is the merge view of a record: every mutable business field,
// rendered as a string.
type Fields map[string]string

// Clone returns an independent copy; a nil receiver yields nil.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Record is implemented by *Character and *Cue.
type Record interface {
	Kind() Kind
	RecordID() string
	Version() time.Time
	SetVersion(time.Time)
	IsDeleted() bool
	SetDeleted(bool)

	// Fields returns the merge view of the record.
	Fields() Fields
	// ApplyFields overwrites the named fields. Unknown names and values
	// that do not parse are rejected with common.ErrorValidation.
	ApplyFields(Fields) error
	Validate() error
	Clone() Record
}

// New returns an empty record of the given kind.
func New(kind Kind, id string) (Record, error) {
	switch kind {
	case KindCharacter:
		return &Character{ID: id}, nil
	case KindCue:
		return &Cue{ID: id, Status: StatusSpotted}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", common.ErrorValidation, kind)
	}
}

// FromFields builds a validated record of the given kind.
func FromFields(kind Kind, id string, f Fields) (Record, error) {
	rec, err := New(kind, id)
	if err != nil {
		return nil, err
	}
	if err := rec.ApplyFields(f); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode parses the JSON form of a record of the given kind.
func Decode(kind Kind, data []byte) (Record, error) {
	rec, err := New(kind, "")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Encode returns the JSON form of rec.
func Encode(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}
