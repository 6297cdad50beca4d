package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaymemo/internal/core"
	"birthdaymemo/internal/records/jsonfile"
	"birthdaymemo/internal/services"
)

type testServer struct {
	srv   *Server
	store *jsonfile.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := jsonfile.New(t.TempDir())
	srv := NewServer(":0", services.NewMemoService(store), Options{
		Registry:           prometheus.NewRegistry(),
		RateLimitPerMinute: 1000,
		Now:                func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	require.NotNil(t, srv.templates)
	return &testServer{srv: srv, store: store}
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func (ts *testServer) post(t *testing.T, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexRendersDefaultForm(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, "Birthday Memo")
	assert.Contains(t, body, `value="guest"`)
	assert.Contains(t, body, `value="2024"`)
	assert.Contains(t, body, "What you did on Wife or husband&#39;s 2024 birthday")
	assert.Contains(t, body, `name="grandchild3_name"`)
	assert.NotContains(t, body, `name="grandchild4_name"`)
	assert.Contains(t, body, "No records saved yet.")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.FileExists(t, mustPath(t, ts.store, "guest"), "first access creates the record file")
}

func TestIndexBlankUserShowsWarning(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/?user=")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please enter a user name")
	assert.NotContains(t, rr.Body.String(), `id="memo-form"`)
}

func TestIndexOutOfRangeYearFallsBack(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.get(t, "/?year=3000")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="year" type="number" min="1900" max="2100" step="1" value="2024"`)
}

func TestUnknownPathIs404(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, ts.get(t, "/nope").Code)
}

func TestSaveScenario(t *testing.T) {
	ts := newTestServer(t)

	for _, step := range []struct {
		year string
		note string
	}{{"2020", "cake"}, {"2021", "party"}, {"2020", "cake2"}} {
		rr := ts.post(t, "/memo", url.Values{
			"user":      {"maeda"},
			"year":      {step.year},
			"self_name": {"Alice"},
			"self_note": {step.note},
		}, true)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), "Saved records for "+step.year)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), "memo:saved")
		assert.NotContains(t, rr.Body.String(), "<html", "htmx gets the fragment")
	}

	rec, err := ts.store.Load(context.Background(), "maeda")
	require.NoError(t, err)
	assert.Equal(t, []core.Entry{
		{Name: "Alice", Year: 2021, Note: "party"},
		{Name: "Alice", Year: 2020, Note: "cake2"},
	}, rec.History(core.Self))

	rr := ts.get(t, "/ui/history?user=maeda")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "2021: <strong>Alice</strong> → party")
	assert.Less(t, strings.Index(body, "2021:"), strings.Index(body, "2020:"))
	assert.NotContains(t, body, "cake<")
}

func TestSaveSkipsBlankEntriesAndKeepsExisting(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.Save(ctx, "guest", core.Record{
		core.Spouse: {{Name: "Bob", Year: 2024, Note: "dinner"}},
	}))

	rr := ts.post(t, "/memo", url.Values{
		"user":        {"guest"},
		"year":        {"2024"},
		"spouse_name": {"Bob"},
		"spouse_note": {""},
		"child1_name": {"Ken"},
		"child1_note": {"lego"},
	}, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<html", "plain form posts get the full page")

	rec, err := ts.store.Load(ctx, "guest")
	require.NoError(t, err)
	assert.Equal(t, "dinner", rec.FindEntry(core.Spouse, 2024).Note)
	assert.Equal(t, "lego", rec.FindEntry(core.Child1, 2024).Note)
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/memo", url.Values{"user": {"guest"}, "year": {"1800"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "between 1900 and 2100")

	rr = ts.post(t, "/memo", url.Values{"user": {"  "}, "year": {"2024"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please enter a user name")
}

type failingMemos struct{}

func (failingMemos) Load(context.Context, string) (core.Record, error) {
	return nil, errors.New("disk on fire")
}

func (failingMemos) Save(context.Context, string, *core.FormSession) ([]core.Role, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreFailuresAre500(t *testing.T) {
	srv := NewServer(":0", failingMemos{}, Options{Now: func() time.Time { return fixedNow }})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Could not load the records")
	assert.NotContains(t, rr.Body.String(), "disk on fire")

	req := httptest.NewRequest(http.MethodPost, "/memo", strings.NewReader("user=guest&year=2024"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Could not save the records")
}

func TestAddGrandchildPreservesBuffers(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(context.Background(), "guest", core.Record{
		core.Grandchild(4): {{Name: "Mio", Year: 2024, Note: "zoo"}},
	}))

	rr := ts.post(t, "/memo/grandchildren", url.Values{
		"user":          {"guest"},
		"year":          {"2024"},
		"grandchildren": {"3"},
		"self_name":     {"typed but unsaved"},
		"self_note":     {""},
	}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, `name="grandchildren" value="4"`)
	assert.Contains(t, body, `value="typed but unsaved"`)
	assert.Contains(t, body, `value="Mio"`, "new section is pre-filled from the record")
	assert.NotContains(t, body, `name="grandchild5_name"`)
}

func TestAddGrandchildAtCapacity(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/memo/grandchildren", url.Values{
		"user":          {"guest"},
		"grandchildren": {"10"},
	}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "You can add at most 10 grandchildren")
	assert.Contains(t, rr.Body.String(), `name="grandchildren" value="10"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.srv.metrics.GrandchildRejected))
}

func TestFormPartialSwitchesYear(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(context.Background(), "guest", core.Record{
		core.Self: {
			{Name: "Alice", Year: 2020, Note: "cake"},
			{Name: "Alice", Year: 2021, Note: "party"},
		},
	}))

	rr := ts.get(t, "/ui/form?user=guest&year=2020")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), ">cake</textarea>")
	assert.NotContains(t, rr.Body.String(), "<html")

	rr = ts.get(t, "/ui/form?user=guest&year=2021")
	assert.Contains(t, rr.Body.String(), ">party</textarea>")

	rr = ts.get(t, "/ui/form?user=")
	assert.Contains(t, rr.Body.String(), "Please enter a user name")
}

func TestHealthReadyMetricsStatic(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, "ok", ts.get(t, "/healthz").Body.String())
	assert.Equal(t, "ready", ts.get(t, "/readyz").Body.String())

	ts.get(t, "/")
	rr := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "memo_http_requests_total")

	rr = ts.get(t, "/static/style.css")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("db gone") }

func TestReadyReportsBackendDown(t *testing.T) {
	srv := NewServer(":0", failingMemos{}, Options{Ready: downPinger{}})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRateLimitOnPosts(t *testing.T) {
	srv := NewServer(":0", services.NewMemoService(jsonfile.New(t.TempDir())), Options{RateLimitPerMinute: 1})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/memo", strings.NewReader("user=guest&year=2024"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestRateLimitHonorsConfiguredProxy(t *testing.T) {
	srv := NewServer(":0", services.NewMemoService(jsonfile.New(t.TempDir())), Options{
		RateLimitPerMinute: 1,
		TrustedProxies:     []string{"100.64.0.0/10"},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	do := func(clientIP string) int {
		req := httptest.NewRequest(http.MethodPost, "/memo", strings.NewReader("user=guest&year=2024"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", clientIP)
		req.RemoteAddr = "100.64.0.7:4242"
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, do("203.0.113.1"))
	assert.Equal(t, http.StatusOK, do("203.0.113.2"), "each forwarded client has its own window")
	assert.Equal(t, http.StatusTooManyRequests, do("203.0.113.1"))
}

func TestSaveKeepsInputAsTyped(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/memo", url.Values{
		"user":        {"guest"},
		"year":        {"2020"},
		"self_name":   {" Alice "},
		"self_note":   {"cake\r\nand candles\r\n"},
		"spouse_name": {"Bob"},
		"spouse_note": {"   "},
	}, true)
	require.Equal(t, http.StatusOK, rr.Code)

	rec, err := ts.store.Load(context.Background(), "guest")
	require.NoError(t, err)
	assert.Equal(t, core.Entry{Name: " Alice ", Year: 2020, Note: "cake\nand candles\n"}, rec.FindEntry(core.Self, 2020))
	assert.Equal(t, core.Entry{Name: "Bob", Year: 2020, Note: "   "}, rec.FindEntry(core.Spouse, 2020))
}

func TestHTMXErrorsTargetMemo(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/memo", url.Values{"user": {""}, "year": {"2024"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "#memo", rr.Header().Get("HX-Retarget"))
	assert.Equal(t, "outerHTML", rr.Header().Get("HX-Reswap"))
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"type":"warning"`)
	assert.Contains(t, rr.Body.String(), `<div id="memo">`)

	rr = ts.post(t, "/memo", url.Values{"user": {""}, "year": {"2024"}}, false)
	assert.Empty(t, rr.Header().Get("HX-Retarget"), "plain posts get the full page")

	srv := NewServer(":0", failingMemos{}, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	req := httptest.NewRequest(http.MethodPost, "/memo", strings.NewReader("user=guest&year=2024"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "#memo", rr.Header().Get("HX-Retarget"))
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"type":"error"`)
	assert.Contains(t, rr.Body.String(), "Could not save the records")

	// htmx only swaps these statuses because app.js opts in.
	js := ts.get(t, "/static/app.js").Body.String()
	assert.Contains(t, js, "htmx:beforeSwap")
	assert.Contains(t, js, "status === 422 || status === 500")
}

func mustPath(t *testing.T, s *jsonfile.Store, user string) string {
	t.Helper()
	p, err := s.Path(user)
	require.NoError(t, err)
	return p
}
