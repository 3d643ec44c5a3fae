package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/google/uuid"
)

type field struct {
	name  string
	label string
}

// prompts lists the editable fields of each kind in prompt order.
var prompts = map[models.Kind][]field{
	models.KindCharacter: {
		{"name", "Name"},
		{"actor", "Actor"},
		{"notes", "Notes"},
	},
	models.KindCue: {
		{"character_id", "Character id"},
		{"reel", "Reel"},
		{"timecode_in", "Timecode in (HH:MM:SS:FF)"},
		{"timecode_out", "Timecode out (HH:MM:SS:FF)"},
		{"dialogue", "Dialogue"},
		{"notes", "Notes"},
		{"status", "Status (" + statusList() + ")"},
		{"priority", fmt.Sprintf("Priority (0-%d)", models.MaxPriority)},
	},
}

// clearValue typed while editing empties a field.
const clearValue = "-"

func statusList() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func yes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *App) Characters(ctx context.Context) error {
	recs, err := a.records.List(ctx, models.KindCharacter)
	if err != nil {
		return err
	}
	slices.SortFunc(recs, func(x, y models.Record) int {
		return strings.Compare(x.(*models.Character).Name, y.(*models.Character).Name)
	})

	a.outMu.Lock()
	defer a.outMu.Unlock()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tACTOR")
	for _, r := range recs {
		c := r.(*models.Character)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Actor)
	}
	return tw.Flush()
}

// Cues lists cues in reel and timecode order, optionally only those of
// one character.
func (a *App) Cues(ctx context.Context, characterID string) error {
	recs, err := a.records.List(ctx, models.KindCue)
	if err != nil {
		return err
	}

	cues := make([]*models.Cue, 0, len(recs))
	for _, r := range recs {
		c := r.(*models.Cue)
		if characterID == "" || c.CharacterID == characterID {
			cues = append(cues, c)
		}
	}
	slices.SortFunc(cues, func(x, y *models.Cue) int {
		if n := strings.Compare(x.Reel, y.Reel); n != 0 {
			return n
		}
		return strings.Compare(x.TimecodeIn, y.TimecodeIn)
	})

	a.outMu.Lock()
	defer a.outMu.Unlock()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREEL\tIN\tOUT\tSTATUS\tPRI\tDIALOGUE")
	for _, c := range cues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			c.ID, c.Reel, c.TimecodeIn, c.TimecodeOut, c.Status, c.Priority, c.Dialogue)
	}
	return tw.Flush()
}

// find looks id up among every kind.
func (a *App) find(ctx context.Context, id string) (models.Record, error) {
	for _, kind := range models.Kinds {
		rec, err := a.records.Get(ctx, kind, id)
		if err == nil {
			if rec.IsDeleted() {
				continue
			}
			return rec, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}
	return nil, common.ErrorNotFound
}

func (a *App) Show(ctx context.Context, id string) error {
	rec, err := a.find(ctx, id)
	if err != nil {
		return err
	}

	f := rec.Fields()
	a.outMu.Lock()
	defer a.outMu.Unlock()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", rec.Kind(), rec.RecordID())
	for _, p := range prompts[rec.Kind()] {
		fmt.Fprintf(tw, "%s\t%s\n", p.name, f[p.name])
	}
	fmt.Fprintf(tw, "version\t%s\n", rec.Version().Format("2006-01-02 15:04:05.000000"))
	return tw.Flush()
}

func (a *App) AddCharacter(ctx context.Context) error {
	return a.add(ctx, models.KindCharacter)
}

func (a *App) AddCue(ctx context.Context) error {
	return a.add(ctx, models.KindCue)
}

func (a *App) add(ctx context.Context, kind models.Kind) error {
	f := models.Fields{}
	for _, p := range prompts[kind] {
		v, err := getSimpleText(a.reader, p.label, a.out)
		if err != nil {
			return err
		}
		if v != "" {
			f[p.name] = v
		}
	}

	rec, err := models.FromFields(kind, uuid.NewString(), f)
	if err != nil {
		return err
	}
	stored, err := a.records.Create(ctx, rec)
	if err != nil {
		return err
	}

	a.sayf("Created %s %s\n", kind, stored.RecordID())
	return nil
}

// Edit prompts for every field with its current value. Empty input keeps
// the value and "-" clears it. Other clients see that the record is being
// edited until the prompt finishes.
func (a *App) Edit(ctx context.Context, id string) error {
	rec, err := a.find(ctx, id)
	if err != nil {
		return err
	}

	if err := a.presence.SendPresence(true, id); err != nil {
		a.logger.Debug(ctx, "Presence not sent", "error", err)
	}
	defer func() {
		if err := a.presence.SendPresence(false, id); err != nil {
			a.logger.Debug(ctx, "Presence not sent", "error", err)
		}
	}()

	base := rec.Fields()
	changed := models.Fields{}
	for _, p := range prompts[rec.Kind()] {
		v, err := getSimpleText(a.reader, fmt.Sprintf("%s [%s]", p.label, base[p.name]), a.out)
		if err != nil {
			return err
		}
		switch v {
		case "":
			continue
		case clearValue:
			v = ""
		}
		if v != base[p.name] {
			changed[p.name] = v
		}
	}
	if len(changed) == 0 {
		a.say("Nothing changed")
		return nil
	}

	v := rec.Version()
	out, err := a.records.Update(ctx, rec.Kind(), id, merge.Request{Fields: changed, Base: base, Version: &v})
	if err != nil {
		return err
	}

	if out.Status == merge.StatusConflict {
		if out, err = a.overwrite(ctx, rec.Kind(), id, changed, out); err != nil || out == nil {
			return err
		}
	}

	switch out.Status {
	case merge.StatusMerged:
		a.sayf("Saved, merged with other changes to: %s\n", strings.Join(out.MergedFields, ", "))
	case merge.StatusApplied:
		a.say("Saved")
	}
	return nil
}

// overwrite shows the values that changed underneath the edit and, if
// the user agrees, writes the edit over them. A nil outcome means the
// user kept the other values.
func (a *App) overwrite(ctx context.Context, kind models.Kind, id string, changed models.Fields, out *merge.Outcome) (*merge.Outcome, error) {
	theirs := out.Record.Fields()
	a.say("Someone else changed this record meanwhile:")
	names := out.ConflictingFields
	if len(names) == 0 {
		names = changed.Keys()
	}
	for _, name := range names {
		a.sayf("  %s: yours %q, theirs %q\n", name, changed[name], theirs[name])
	}

	answer, err := getSimpleText(a.reader, "Overwrite with your values? [y/N]", a.out)
	if err != nil {
		return nil, err
	}
	if !yes(answer) {
		a.say("Edit discarded")
		return nil, nil
	}

	v := out.Record.Version()
	forced, err := a.records.Update(ctx, kind, id, merge.Request{Fields: changed, Version: &v})
	if err != nil {
		return nil, err
	}
	if forced.Status == merge.StatusConflict {
		return nil, fmt.Errorf("%w: record changed again, try once more", common.ErrUnresolved)
	}
	return forced, nil
}

func (a *App) Remove(ctx context.Context, id string) error {
	rec, err := a.find(ctx, id)
	if err != nil {
		return err
	}
	if err := a.records.Delete(ctx, rec.Kind(), id); err != nil {
		return err
	}
	a.sayf("Deleted %s %s\n", rec.Kind(), id)
	return nil
}
