package http

import (
	"fmt"

	"birthdaymemo/internal/core"
)

type messages struct {
	Success string
	Info    string
	Warning string
	Error   string
}

type sectionView struct {
	Role       string
	Label      string
	Emoji      string
	Name       string
	Note       string
	NameField  string
	NoteField  string
	NameLabel  string
	NoteLabel  string
	Grandchild bool
}

type formView struct {
	Username         string
	Year             int
	MinYear          int
	MaxYear          int
	GrandchildCount  int
	MaxGrandchildren int
	CanAddGrandchild bool
	Sections         []sectionView
	Grandchildren    []sectionView
}

type historyLine struct {
	Year int
	Name string
	Note string
}

type historyGroup struct {
	Label string
	Icon  string
	Lines []historyLine
}

type historyView struct {
	Username string
	Groups   []historyGroup
}

type pageData struct {
	Username string
	messages
	Form    *formView
	History *historyView
}

func newFormView(username string, s *core.FormSession) *formView {
	v := &formView{
		Username:         username,
		Year:             s.Year,
		MinYear:          core.MinYear,
		MaxYear:          core.MaxYear,
		GrandchildCount:  s.GrandchildCount,
		MaxGrandchildren: core.MaxGrandchildren,
		CanAddGrandchild: s.CanAddGrandchild(),
	}
	for _, role := range s.ActiveRoles() {
		b := s.Buffer(role)
		label := role.Label()
		sec := sectionView{
			Role:      role.String(),
			Label:     label,
			Emoji:     role.Emoji(),
			Name:      b.Name,
			Note:      b.Note,
			NameField: fieldName(role),
			NoteField: fieldNote(role),
			NameLabel: fmt.Sprintf("%s's name", label),
			NoteLabel: fmt.Sprintf("What you did on %s's %d birthday", label, s.Year),
		}
		if _, ok := role.GrandchildIndex(); ok {
			sec.Grandchild = true
			v.Grandchildren = append(v.Grandchildren, sec)
			continue
		}
		v.Sections = append(v.Sections, sec)
	}
	return v
}

// newHistoryView lists every role in the record with its entries, newest first.
func newHistoryView(username string, rec core.Record) *historyView {
	v := &historyView{Username: username}
	for _, role := range rec.Roles() {
		g := historyGroup{Label: role.Label(), Icon: historyIcon(role)}
		for _, e := range rec.History(role) {
			g.Lines = append(g.Lines, historyLine{Year: e.Year, Name: e.Name, Note: e.Note})
		}
		v.Groups = append(v.Groups, g)
	}
	return v
}

func historyIcon(role core.Role) string {
	if _, ok := role.GrandchildIndex(); ok {
		return "🐱"
	}
	return "👤"
}
