// Package http serves the birthday memo form.
//
// This file turns query strings and posted forms into a user name and a
// core.FormSession. The form carries every buffer plus the grandchild count,
// so a session never needs server-side state between requests.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"birthdaymemo/internal/core"
)

const defaultUsername = "guest"

// Form field names. Per-role fields are "<role>_name" and "<role>_note".
const (
	fieldUser          = "user"
	fieldYear          = "year"
	fieldGrandchildren = "grandchildren"
	suffixName         = "_name"
	suffixNote         = "_note"
)

// MemoRequest is a parsed form submission or page query.
type MemoRequest struct {
	Username string
	// YearInvalid is set when the year was missing, unparsable or out of range.
	YearInvalid bool
	RawYear     string
	Session     *core.FormSession
	// Posted lists roles whose buffers came from the request.
	Posted map[core.Role]bool
}

// ParseMemoRequest reads user, year, grandchildren and any role buffers from
// values. A missing user defaults to guest; an explicitly blank one stays blank.
func ParseMemoRequest(values url.Values, now time.Time) MemoRequest {
	req := MemoRequest{Posted: map[core.Role]bool{}}

	req.Username = defaultUsername
	if _, ok := values[fieldUser]; ok {
		req.Username = strings.TrimSpace(sanitizeInput(values.Get(fieldUser)))
	}

	session := core.NewFormSession(now.Year())
	req.RawYear = strings.TrimSpace(values.Get(fieldYear))
	if req.RawYear != "" {
		y, err := strconv.Atoi(req.RawYear)
		if err != nil || session.SelectYear(y) != nil {
			req.YearInvalid = true
		}
	}
	if v := strings.TrimSpace(values.Get(fieldGrandchildren)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			session.GrandchildCount = core.ClampGrandchildren(n)
		}
	}

	for _, role := range session.ActiveRoles() {
		name, hasName := values[fieldName(role)]
		note, hasNote := values[fieldNote(role)]
		if !hasName && !hasNote {
			continue
		}
		session.Set(role, sanitizeInput(first(name)), sanitizeInput(first(note)))
		req.Posted[role] = true
	}

	req.Session = session
	return req
}

// Year error message shown when a submitted year cannot be used.
func yearErrorMessage(raw string) string {
	return fmt.Sprintf("Year %q is not valid: enter a year between %d and %d", raw, core.MinYear, core.MaxYear)
}

func fieldName(role core.Role) string {
	return string(role) + suffixName
}

func fieldNote(role core.Role) string {
	return string(role) + suffixNote
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
