package journal

import "slices"

// Effective is the single operation replayed for one entity. Covers lists
// the ids of every journal entry it stands for, Entry.ID included; all of
// them are marked synced once it is replayed.
type Effective struct {
	Entry  Entry
	Covers []int64
}

// Plan is the result of Deduplicate.
type Plan struct {
	// Parents and Dependents keep first-touch order within each batch.
	Parents    []Effective
	Dependents []Effective
	// Cancelled holds entries whose net effect is nothing: the entity was
	// created and deleted before any replay.
	Cancelled []int64
}

// Batches returns the replay order: parents first.
func (p Plan) Batches() [][]Effective {
	return [][]Effective{p.Parents, p.Dependents}
}

// Len is the number of entities that need a network call.
func (p Plan) Len() int {
	return len(p.Parents) + len(p.Dependents)
}

// Deduplicate reduces unsynced entries, which must be in recorded order, to
// at most one effective entry per entity:
//
//   - insert ... delete: nothing, every entry is cancelled
//   - any other group with a delete: the last delete
//   - insert followed by updates: the insert carrying the last payload
//   - updates only: the last update, with the first update's base
func Deduplicate(entries []Entry) Plan {
	var order []Key
	groups := map[Key][]Entry{}
	for _, e := range entries {
		k := e.Key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	var plan Plan
	for _, k := range order {
		group := groups[k]
		ids := make([]int64, 0, len(group))
		for _, e := range group {
			ids = append(ids, e.ID)
		}

		eff, ok := reduce(group)
		if !ok {
			plan.Cancelled = append(plan.Cancelled, ids...)
			continue
		}

		item := Effective{Entry: eff, Covers: ids}
		if k.Entity.IsParent() {
			plan.Parents = append(plan.Parents, item)
		} else {
			plan.Dependents = append(plan.Dependents, item)
		}
	}
	return plan
}

func reduce(group []Entry) (Entry, bool) {
	first := group[0]

	lastDelete := -1
	for i, e := range group {
		if e.Operation == OpDelete {
			lastDelete = i
		}
	}
	if lastDelete >= 0 {
		if first.Operation == OpInsert {
			return Entry{}, false
		}
		return group[lastDelete], true
	}

	if i := slices.IndexFunc(group, func(e Entry) bool { return e.Operation == OpInsert }); i >= 0 {
		eff := group[i]
		for j := len(group) - 1; j > i; j-- {
			if group[j].Operation == OpUpdate && group[j].Payload != nil {
				eff.Payload = group[j].Payload.Clone()
				break
			}
		}
		eff.Base = nil
		return eff, true
	}

	eff := group[len(group)-1]
	eff.Base = first.Base
	return eff, true
}
