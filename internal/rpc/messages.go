package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
)

// Record is a record of any kind on the wire.
type Record struct {
	Kind models.Kind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// WrapRecord encodes rec for transport.
func WrapRecord(rec models.Record) (Record, error) {
	data, err := models.Encode(rec)
	if err != nil {
		return Record{}, err
	}
	return Record{Kind: rec.Kind(), Data: data}, nil
}

// Unwrap decodes the typed record.
func (r Record) Unwrap() (models.Record, error) {
	if len(r.Data) == 0 {
		return nil, fmt.Errorf("%w: empty record", common.ErrorValidation)
	}
	return models.Decode(r.Kind, r.Data)
}

type PingRequest struct{}

type PingResponse struct {
	ServerTime time.Time `json:"server_time"`
}

type RegisterRequest struct {
	UserName string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type GetSaltRequest struct {
	UserName string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	UserName string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type GetRequest struct {
	Kind models.Kind `json:"kind"`
	ID   string      `json:"id"`
}

type GetResponse struct {
	Record Record `json:"record"`
}

// ListRequest asks for the records of one kind. With Since set only
// records changed after it are returned; IncludeDeleted adds tombstones.
type ListRequest struct {
	Kind           models.Kind `json:"kind"`
	Since          *time.Time  `json:"since,omitempty"`
	IncludeDeleted bool        `json:"include_deleted,omitempty"`
}

type ListResponse struct {
	Records []Record `json:"records"`
}

type CreateRequest struct {
	Record Record `json:"record"`
}

type CreateResponse struct {
	Record Record `json:"record"`
}

type UpdateRequest struct {
	Kind    models.Kind   `json:"kind"`
	ID      string        `json:"id"`
	Request merge.Request `json:"request"`
}

// UpdateResponse carries every outcome of an update, conflicts included.
// On conflict Record is the current authoritative record and an empty
// ConflictingFields means the conflicting fields are unknown.
type UpdateResponse struct {
	Status            merge.Status `json:"status"`
	Record            Record       `json:"record"`
	MergedFields      []string     `json:"merged_fields,omitempty"`
	ConflictingFields []string     `json:"conflicting_fields,omitempty"`
}

type DeleteRequest struct {
	Kind models.Kind `json:"kind"`
	ID   string      `json:"id"`
}

type DeleteResponse struct{}
