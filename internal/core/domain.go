package core

import (
	"errors"
	"sort"
)

const (
	MinYear = 1900
	MaxYear = 2100
)

type (
	// Entry is one year's birthday memo for a single role.
	Entry struct {
		Name string `json:"name"`
		Year int    `json:"year"`
		Note string `json:"note"`
	}

	// Record maps each role to its yearly entries, as stored in a user's file.
	Record map[Role][]Entry
)

var (
	ErrEmptyUsername  = errors.New("empty username")
	ErrYearOutOfRange = errors.New("year out of range (1900-2100)")
)

// ValidateYear reports whether y can be selected in the form.
func ValidateYear(y int) error {
	if y < MinYear || y > MaxYear {
		return ErrYearOutOfRange
	}
	return nil
}

// Complete reports whether the entry carries both a name and a note.
// Whitespace counts as content. Incomplete entries are never written.
func (e Entry) Complete() bool {
	return e.Name != "" && e.Note != ""
}

// FindEntry returns the entry for role and year, or an entry with empty
// name and note when none exists. With duplicate years the later entry wins,
// as in History.
func (r Record) FindEntry(role Role, year int) Entry {
	entries := r[role]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Year == year {
			return entries[i]
		}
	}
	return Entry{Year: year}
}

// Upsert replaces any entry of the same year for role with e and appends it.
// Incomplete entries are dropped and leave the record untouched.
func (r Record) Upsert(role Role, e Entry) bool {
	if !e.Complete() {
		return false
	}
	existing := r[role]
	updated := make([]Entry, 0, len(existing)+1)
	for _, old := range existing {
		if old.Year != e.Year {
			updated = append(updated, old)
		}
	}
	r[role] = append(updated, e)
	return true
}

// History returns the entries for role sorted by year descending, one per year.
// When a file carries duplicate years, the later entry wins.
func (r Record) History(role Role) []Entry {
	byYear := make(map[int]Entry, len(r[role]))
	for _, e := range r[role] {
		byYear[e.Year] = e
	}
	out := make([]Entry, 0, len(byYear))
	for _, e := range byYear {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out
}

// Roles returns the roles that hold at least one entry, in display order.
func (r Record) Roles() []Role {
	out := make([]Role, 0, len(r))
	for role, entries := range r {
		if len(entries) > 0 {
			out = append(out, role)
		}
	}
	SortRoles(out)
	return out
}

// Empty reports whether no role holds any entry.
func (r Record) Empty() bool {
	for _, entries := range r {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so cached records are never mutated by callers.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for role, entries := range r {
		out[role] = append([]Entry(nil), entries...)
	}
	return out
}
