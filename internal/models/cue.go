package models

import (
	"regexp"
	"strconv"
	"time"
)

// CueStatus is the recording state of a cue.
type CueStatus string

const (
	StatusSpotted  CueStatus = "spotted"
	StatusRecorded CueStatus = "recorded"
	StatusPrinted  CueStatus = "printed"
	StatusApproved CueStatus = "approved"
	StatusOmitted  CueStatus = "omitted"
)

// Statuses lists the valid statuses in workflow order.
var Statuses = []CueStatus{StatusSpotted, StatusRecorded, StatusPrinted, StatusApproved, StatusOmitted}

func (s CueStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// MaxPriority is the highest cue priority; 0 means none.
const MaxPriority = 5

var timecodeRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[:;]\d{2}$`)

// Cue is one line of dialogue to be recorded, with its timing.
type Cue struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Reel        string    `json:"reel"`
	TimecodeIn  string    `json:"timecode_in"`
	TimecodeOut string    `json:"timecode_out"`
	Dialogue    string    `json:"dialogue"`
	Notes       string    `json:"notes"`
	Status      CueStatus `json:"status"`
	Priority    int       `json:"priority"`
	UpdatedAt   time.Time `json:"updated_at"`
	Deleted     bool      `json:"deleted,omitempty"`
}

func (c *Cue) Kind() Kind             { return KindCue }
func (c *Cue) RecordID() string       { return c.ID }
func (c *Cue) Version() time.Time     { return c.UpdatedAt }
func (c *Cue) SetVersion(t time.Time) { c.UpdatedAt = t }
func (c *Cue) IsDeleted() bool        { return c.Deleted }
func (c *Cue) SetDeleted(d bool)      { c.Deleted = d }

func (c *Cue) Fields() Fields {
	return Fields{
		"character_id": c.CharacterID,
		"reel":         c.Reel,
		"timecode_in":  c.TimecodeIn,
		"timecode_out": c.TimecodeOut,
		"dialogue":     c.Dialogue,
		"notes":        c.Notes,
		"status":       string(c.Status),
		"priority":     strconv.Itoa(c.Priority),
	}
}

func (c *Cue) ApplyFields(f Fields) error {
	for k, v := range f {
		switch k {
		case "character_id":
			c.CharacterID = v
		case "reel":
			c.Reel = v
		case "timecode_in":
			c.TimecodeIn = v
		case "timecode_out":
			c.TimecodeOut = v
		case "dialogue":
			c.Dialogue = v
		case "notes":
			c.Notes = v
		case "status":
			c.Status = CueStatus(v)
		case "priority":
			if v == "" {
				c.Priority = 0
				continue
			}
			p, err := strconv.Atoi(v)
			if err != nil {
				return invalid("priority %q is not a number", v)
			}
			c.Priority = p
		default:
			return invalid("unknown cue field %q", k)
		}
	}
	return nil
}

func (c *Cue) Validate() error {
	if c.ID == "" {
		return invalid("cue id is required")
	}
	if !c.Status.Valid() {
		return invalid("unknown status %q", c.Status)
	}
	if c.Priority < 0 || c.Priority > MaxPriority {
		return invalid("priority must be between 0 and %d", MaxPriority)
	}
	for _, tc := range []string{c.TimecodeIn, c.TimecodeOut} {
		if tc != "" && !timecodeRe.MatchString(tc) {
			return invalid("timecode %q must look like HH:MM:SS:FF", tc)
		}
	}
	return nil
}

func (c *Cue) Clone() Record {
	cp := *c
	return &cp
}
