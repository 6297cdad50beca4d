package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"birthdaymemo/internal/core"
	applog "birthdaymemo/internal/log"
)

const (
	msgEnterUsername = "Please enter a user name"
	msgSaveFailed    = "Could not save the records. Please try again."
	msgLoadFailed    = "Could not load the records. Please try again."
	msgBadForm       = "Invalid request format"
)

func msgSaved(year int) string {
	return fmt.Sprintf("Saved records for %d", year)
}

func msgGrandchildLimit() string {
	return fmt.Sprintf("You can add at most %d grandchildren", core.MaxGrandchildren)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleIndex renders the full page for ?user=&year=&grandchildren=.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	req := s.parseQuery(r)
	data, status := s.buildPage(r.Context(), req, nil)
	NewHTMXResponse().Status(status).BodyTemplate(s.templates, "index", data).Write(w)
}

// handleFormPartial re-renders only the form, typically after a year change.
func (s *Server) handleFormPartial(w http.ResponseWriter, r *http.Request) {
	req := s.parseQuery(r)
	data, status := s.buildPage(r.Context(), req, nil)
	name := "form"
	if data.Form == nil {
		name = "messages"
	}
	NewHTMXResponse().Status(status).BodyTemplate(s.templates, name, data).Write(w)
}

func (s *Server) handleHistoryPartial(w http.ResponseWriter, r *http.Request) {
	req := s.parseQuery(r)
	data, status := s.buildPage(r.Context(), req, nil)
	name := "history"
	if data.History == nil {
		name = "messages"
	}
	NewHTMXResponse().Status(status).BodyTemplate(s.templates, name, data).Write(w)
}

// handleAddGrandchild keeps the posted buffers and shows one more grandchild
// section, or a notice when the form is already at capacity.
func (s *Server) handleAddGrandchild(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError(msgBadForm).Write(w)
		return
	}
	req := s.parseForm(r)

	var msg messages
	if !req.Session.AddGrandchild() {
		s.metrics.GrandchildRejected.Inc()
		msg.Info = msgGrandchildLimit()
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Grandchild limit reached",
			applog.NewFields().WithMemo(req.Username, req.Session.Year, req.Session.GrandchildCount).ToSlice()...)
	}

	data, status := s.buildPage(r.Context(), req, &msg)
	s.writeMemo(w, r, status, data, nil)
}

// handleSave merges the posted buffers for the selected year into the
// user's record and re-renders the form with the refreshed history.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		BadRequestError(msgBadForm).Write(w)
		return
	}
	req := ParseMemoRequest(r.PostForm, s.now())

	if req.YearInvalid {
		logger.WarnContext(ctx, "Rejected save with invalid year", applog.FieldYear, req.RawYear)
		msg := yearErrorMessage(req.RawYear)
		data := pageData{Username: req.Username, messages: messages{Error: msg}}
		s.writeMemo(w, r, http.StatusUnprocessableEntity, data, NewHTMXResponse().TriggerWarningNotification(msg))
		return
	}

	written, err := s.memos.Save(ctx, req.Username, req.Session)
	switch {
	case errors.Is(err, core.ErrEmptyUsername):
		data := pageData{Username: req.Username, messages: messages{Warning: msgEnterUsername}}
		s.writeMemo(w, r, http.StatusUnprocessableEntity, data, NewHTMXResponse().TriggerWarningNotification(msgEnterUsername))
		return
	case errors.Is(err, core.ErrYearOutOfRange):
		msg := yearErrorMessage(req.RawYear)
		data := pageData{Username: req.Username, messages: messages{Error: msg}}
		s.writeMemo(w, r, http.StatusUnprocessableEntity, data, NewHTMXResponse().TriggerWarningNotification(msg))
		return
	case err != nil:
		applog.NewStructuredLogger(logger).LogError(ctx, "Save failed", err, applog.OpSave,
			applog.NewFields().WithMemo(req.Username, req.Session.Year, req.Session.GrandchildCount))
		data := pageData{Username: req.Username, messages: messages{Error: msgSaveFailed}}
		s.writeMemo(w, r, http.StatusInternalServerError, data, NewHTMXResponse().TriggerErrorNotification(msgSaveFailed))
		return
	}

	msg := messages{Success: msgSaved(req.Session.Year)}
	data, status := s.buildPage(ctx, reloadRequest(req), &msg)

	resp := NewHTMXResponse()
	if status == http.StatusOK {
		resp.TriggerMemoSaved(req.Username, req.Session.Year).
			TriggerSuccessNotification(msg.Success)
	}
	logger.DebugContext(ctx, "Save handled", applog.FieldEntriesWritten, len(written))
	s.writeMemo(w, r, status, data, resp)
}

// writeMemo sends the memo fragment to htmx and the whole page otherwise.
// Error fragments are pinned to #memo so the message replaces the form the
// user submitted; web/static/app.js lets htmx swap 422 and 500 bodies.
func (s *Server) writeMemo(w http.ResponseWriter, r *http.Request, status int, data pageData, resp *HTMXResponseBuilder) {
	if resp == nil {
		resp = NewHTMXResponse()
	}
	name := "index"
	if isHTMX(r) {
		name = "memo"
		if status >= http.StatusBadRequest {
			resp.Retarget("#memo", "outerHTML")
		}
	}
	resp.Status(status).BodyTemplate(s.templates, name, data).Write(w)
}

// buildPage loads the user's record, pre-fills the session and assembles the
// view. Buffers posted in req take precedence over stored entries.
func (s *Server) buildPage(ctx context.Context, req MemoRequest, extra *messages) (pageData, int) {
	data := pageData{Username: req.Username}
	if extra != nil {
		data.messages = *extra
	}

	if req.Username == "" {
		data.Warning = msgEnterUsername
		return data, http.StatusOK
	}

	rec, err := s.memos.Load(ctx, req.Username)
	if errors.Is(err, core.ErrEmptyUsername) {
		data.Warning = msgEnterUsername
		return data, http.StatusOK
	}
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to load record",
			applog.FieldUsername, req.Username, applog.FieldError, err)
		data.Error = msgLoadFailed
		return data, http.StatusInternalServerError
	}

	session := req.Session
	posted := session.Buffers
	session.Buffers = map[core.Role]core.Buffer{}
	session.Prefill(rec)
	for role := range req.Posted {
		session.Buffers[role] = posted[role]
	}

	data.Form = newFormView(req.Username, session)
	data.History = newHistoryView(req.Username, rec)
	return data, http.StatusOK
}

// parseQuery reads a GET query; an unusable year falls back to the current year.
func (s *Server) parseQuery(r *http.Request) MemoRequest {
	req := ParseMemoRequest(r.URL.Query(), s.now())
	s.warnYearFallback(r, req)
	return req
}

func (s *Server) parseForm(r *http.Request) MemoRequest {
	req := ParseMemoRequest(r.PostForm, s.now())
	s.warnYearFallback(r, req)
	return req
}

func (s *Server) warnYearFallback(r *http.Request, req MemoRequest) {
	if req.YearInvalid {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Invalid year, using current year",
			applog.FieldYear, req.RawYear, "fallback", req.Session.Year)
	}
}

// reloadRequest drops posted buffers so the view shows what was stored.
func reloadRequest(req MemoRequest) MemoRequest {
	session := core.NewFormSession(req.Session.Year)
	session.GrandchildCount = req.Session.GrandchildCount
	return MemoRequest{Username: req.Username, RawYear: req.RawYear, Session: session, Posted: map[core.Role]bool{}}
}
