package mapview

import "sort"

// FeatureStateTable holds renderer flags keyed by feature id. Lot records
// never carry these flags.
type FeatureStateTable struct {
	flags map[int64]FeatureFlags
}

// NewFeatureStateTable creates an empty table.
func NewFeatureStateTable() *FeatureStateTable {
	return &FeatureStateTable{flags: make(map[int64]FeatureFlags)}
}

// Get returns the flags for id. Absent ids have all flags cleared.
func (t *FeatureStateTable) Get(id int64) FeatureFlags {
	return t.flags[id]
}

// SetHover sets the hover flag and reports whether it changed.
func (t *FeatureStateTable) SetHover(id int64, hover bool) bool {
	f := t.flags[id]
	if f.Hover == hover {
		return false
	}
	f.Hover = hover
	t.store(id, f)
	return true
}

// SetSelected sets the selected flag and reports whether it changed.
func (t *FeatureStateTable) SetSelected(id int64, selected bool) bool {
	f := t.flags[id]
	if f.Selected == selected {
		return false
	}
	f.Selected = selected
	t.store(id, f)
	return true
}

// Selected returns the ids whose selected flag is set, in ascending order.
func (t *FeatureStateTable) Selected() []int64 {
	var ids []int64
	for id, f := range t.flags {
		if f.Selected {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Retain drops entries whose id is not kept.
func (t *FeatureStateTable) Retain(keep func(id int64) bool) {
	for id := range t.flags {
		if !keep(id) {
			delete(t.flags, id)
		}
	}
}

func (t *FeatureStateTable) store(id int64, f FeatureFlags) {
	if !f.Hover && !f.Selected {
		delete(t.flags, id)
		return
	}
	t.flags[id] = f
}
