package core

// Buffer holds the in-progress form values for one role.
type Buffer struct {
	Name string
	Note string
}

// FormSession is the state of one form interaction: the selected year, how
// many grandchild sections are open and what the user typed for each role.
// It is rebuilt from every request and discarded afterwards.
type FormSession struct {
	Year            int
	GrandchildCount int
	Buffers         map[Role]Buffer
}

// NewFormSession starts a session on year with the default grandchild sections.
func NewFormSession(year int) *FormSession {
	return &FormSession{
		Year:            year,
		GrandchildCount: DefaultGrandchildren,
		Buffers:         make(map[Role]Buffer),
	}
}

// AddGrandchild opens one more grandchild section. It returns false, leaving
// the count unchanged, once MaxGrandchildren sections are open.
func (s *FormSession) AddGrandchild() bool {
	if s.GrandchildCount >= MaxGrandchildren {
		return false
	}
	s.GrandchildCount++
	return true
}

// CanAddGrandchild reports whether AddGrandchild would succeed.
func (s *FormSession) CanAddGrandchild() bool {
	return s.GrandchildCount < MaxGrandchildren
}

// ActiveRoles lists the fixed roles followed by the open grandchild sections.
func (s *FormSession) ActiveRoles() []Role {
	roles := make([]Role, 0, len(FixedRoles)+s.GrandchildCount)
	roles = append(roles, FixedRoles...)
	for i := 1; i <= s.GrandchildCount; i++ {
		roles = append(roles, Grandchild(i))
	}
	return roles
}

// SelectYear switches the session to y. Buffers are not touched; call
// Prefill to load the stored values for the new year.
func (s *FormSession) SelectYear(y int) error {
	if err := ValidateYear(y); err != nil {
		return err
	}
	s.Year = y
	return nil
}

// Prefill replaces every active role's buffer with the stored entry for the
// selected year, or with empty values when nothing is stored.
func (s *FormSession) Prefill(rec Record) {
	for _, role := range s.ActiveRoles() {
		e := rec.FindEntry(role, s.Year)
		s.Buffers[role] = Buffer{Name: e.Name, Note: e.Note}
	}
}

// Set stores the typed values for role.
func (s *FormSession) Set(role Role, name, note string) {
	s.Buffers[role] = Buffer{Name: name, Note: note}
}

// Buffer returns the typed values for role.
func (s *FormSession) Buffer(role Role) Buffer {
	return s.Buffers[role]
}

// Apply upserts every active role's buffer into rec for the selected year and
// returns the roles that were written. Values are stored as typed; a buffer
// with an empty name or note is skipped.
func (s *FormSession) Apply(rec Record) []Role {
	var written []Role
	for _, role := range s.ActiveRoles() {
		b := s.Buffers[role]
		if rec.Upsert(role, Entry{Name: b.Name, Year: s.Year, Note: b.Note}) {
			written = append(written, role)
		}
	}
	return written
}
