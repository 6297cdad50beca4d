package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	Self   Role = "self"
	Spouse Role = "spouse"
	Child1 Role = "child1"
	Child2 Role = "child2"
	Child3 Role = "child3"

	grandchildPrefix = "grandchild"

	DefaultGrandchildren = 3
	MaxGrandchildren     = 10
)

// Role is a family position under which birthday entries are grouped.
type Role string

// FixedRoles are always shown in the form, before any grandchild.
var FixedRoles = []Role{Self, Spouse, Child1, Child2, Child3}

var roleLabels = map[Role]string{
	Self:   "Me",
	Spouse: "Wife or husband",
	Child1: "Child 1",
	Child2: "Child 2",
	Child3: "Child 3",
}

var roleEmoji = map[Role]string{
	Self:   "🎈",
	Spouse: "💐",
	Child1: "👶",
	Child2: "👦",
	Child3: "👧",
}

// Grandchild returns the role for the n-th grandchild (1-based).
func Grandchild(n int) Role {
	return Role(fmt.Sprintf("%s%d", grandchildPrefix, n))
}

// GrandchildIndex returns n for a grandchild role and false for any other role.
func (r Role) GrandchildIndex() (int, bool) {
	s := string(r)
	if !strings.HasPrefix(s, grandchildPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, grandchildPrefix))
	if err != nil || n < 1 || n > MaxGrandchildren {
		return 0, false
	}
	return n, true
}

// Label is the human readable heading for the role.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	if n, ok := r.GrandchildIndex(); ok {
		return fmt.Sprintf("Grandchild %d", n)
	}
	return string(r)
}

func (r Role) Emoji() string {
	if e, ok := roleEmoji[r]; ok {
		return e
	}
	if _, ok := r.GrandchildIndex(); ok {
		return "🐱"
	}
	return "👤"
}

// Known reports whether the role belongs to the fixed set or the grandchild range.
func (r Role) Known() bool {
	if _, ok := roleLabels[r]; ok {
		return true
	}
	_, ok := r.GrandchildIndex()
	return ok
}

func (r Role) String() string {
	return string(r)
}

// rank orders fixed roles first, then grandchildren by number, then unknown keys.
func (r Role) rank() int {
	for i, f := range FixedRoles {
		if f == r {
			return i
		}
	}
	if n, ok := r.GrandchildIndex(); ok {
		return len(FixedRoles) + n
	}
	return len(FixedRoles) + MaxGrandchildren + 1
}

// SortRoles sorts roles in display order; unknown roles sort alphabetically last.
func SortRoles(roles []Role) {
	sort.SliceStable(roles, func(i, j int) bool {
		ri, rj := roles[i].rank(), roles[j].rank()
		if ri != rj {
			return ri < rj
		}
		return roles[i] < roles[j]
	})
}

// ClampGrandchildren keeps a grandchild count inside [DefaultGrandchildren, MaxGrandchildren].
func ClampGrandchildren(n int) int {
	if n < DefaultGrandchildren {
		return DefaultGrandchildren
	}
	if n > MaxGrandchildren {
		return MaxGrandchildren
	}
	return n
}
