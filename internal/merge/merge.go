// Package merge reconciles concurrent edits of one record at field
// granularity. It is used by the authoritative server on every update, by
// the local store while offline and by the replay of journaled edits.
package merge

import (
	"slices"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/models"
)

// Resolution is the outcome of a three-way merge.
type Resolution struct {
	// Fields holds theirs overlaid with every field mine won.
	Fields models.Fields
	// Merged names fields where mine changed and theirs did not.
	Merged []string
	// Conflicts names fields where both sides changed to different values.
	Conflicts []string
}

// Resolve merges mine and theirs, both derived from base. Each field of
// mine is decided on its own:
//
//   - unchanged in mine: theirs is kept
//   - changed only in mine: mine wins and the field is reported as merged
//   - changed on both sides to the same value: no conflict
//   - changed on both sides to different values: conflict
//
// A field missing from a map reads as "". Fields are visited in sorted
// order, so the result does not depend on map iteration order.
func Resolve(mine, base, theirs models.Fields) Resolution {
	res := Resolution{Fields: theirs.Clone()}
	if res.Fields == nil {
		res.Fields = models.Fields{}
	}

	for _, name := range mine.Keys() {
		m, b, t := mine[name], base[name], theirs[name]
		switch {
		case m == b:
			// keep theirs
		case t == b:
			res.Fields[name] = m
			res.Merged = append(res.Merged, name)
		case m == t:
			res.Fields[name] = m
		default:
			res.Conflicts = append(res.Conflicts, name)
		}
	}
	return res
}

// Status is the outcome of an update against a stored record.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusMerged   Status = "merged"
	StatusConflict Status = "conflict"
)

// Request is an update as submitted by a writer.
type Request struct {
	// Fields carries the writer's values.
	Fields models.Fields `json:"fields"`
	// Base is the record as the writer saw it before editing. Without a
	// base the update is accepted only if Version matches.
	Base models.Fields `json:"base,omitempty"`
	// Version is the updated_at the writer last saw.
	Version *time.Time `json:"updated_at,omitempty"`
}

// Decision tells the store what to do with a Request.
type Decision struct {
	Status Status
	// Fields are the values to write when Status is not StatusConflict.
	Fields            models.Fields
	MergedFields      []string
	ConflictingFields []string
}

// FullConflict reports a conflict whose fields are unknown: the writer
// sent no base and its version was stale.
func (d Decision) FullConflict() bool {
	return d.Status == StatusConflict && len(d.ConflictingFields) == 0
}

// Decide runs the write path of a store holding theirs at theirVersion.
func Decide(req Request, theirs models.Fields, theirVersion time.Time) Decision {
	if req.Base == nil {
		if req.Version != nil && req.Version.Equal(theirVersion) {
			out := theirs.Clone()
			if out == nil {
				out = models.Fields{}
			}
			for k, v := range req.Fields {
				out[k] = v
			}
			return Decision{Status: StatusApplied, Fields: out}
		}
		return Decision{Status: StatusConflict}
	}

	res := Resolve(req.Fields, req.Base, theirs)
	if len(res.Conflicts) > 0 {
		return Decision{Status: StatusConflict, ConflictingFields: res.Conflicts}
	}
	if !changedSince(req.Base, theirs) {
		return Decision{Status: StatusApplied, Fields: res.Fields, MergedFields: res.Merged}
	}
	return Decision{Status: StatusMerged, Fields: res.Fields, MergedFields: res.Merged}
}

// changedSince reports whether theirs moved away from base on any field.
func changedSince(base, theirs models.Fields) bool {
	names := append(base.Keys(), theirs.Keys()...)
	slices.Sort(names)
	for _, name := range slices.Compact(names) {
		if base[name] != theirs[name] {
			return true
		}
	}
	return false
}

// Outcome is what a store reports back after an update.
type Outcome struct {
	Status Status
	// Record is the stored record after the write, or the unchanged
	// authoritative record on conflict.
	Record            models.Record
	MergedFields      []string
	ConflictingFields []string
}
