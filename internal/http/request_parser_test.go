package http

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaymemo/internal/core"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseMemoRequestDefaults(t *testing.T) {
	req := ParseMemoRequest(url.Values{}, fixedNow)

	assert.Equal(t, "guest", req.Username)
	assert.Equal(t, 2024, req.Session.Year)
	assert.Equal(t, core.DefaultGrandchildren, req.Session.GrandchildCount)
	assert.False(t, req.YearInvalid)
	assert.Empty(t, req.Posted)
}

func TestParseMemoRequestBlankUserStaysBlank(t *testing.T) {
	req := ParseMemoRequest(url.Values{"user": {"   "}}, fixedNow)
	assert.Equal(t, "", req.Username)
}

func TestParseMemoRequestYear(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		invalid bool
	}{
		{raw: "2020", want: 2020},
		{raw: " 1900 ", want: 1900},
		{raw: "2100", want: 2100},
		{raw: "1899", want: 2024, invalid: true},
		{raw: "2101", want: 2024, invalid: true},
		{raw: "abc", want: 2024, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := ParseMemoRequest(url.Values{"year": {tt.raw}}, fixedNow)
			assert.Equal(t, tt.want, req.Session.Year)
			assert.Equal(t, tt.invalid, req.YearInvalid)
		})
	}
}

func TestParseMemoRequestGrandchildrenClamped(t *testing.T) {
	for raw, want := range map[string]int{"1": 3, "5": 5, "42": 10, "x": 3} {
		req := ParseMemoRequest(url.Values{"grandchildren": {raw}}, fixedNow)
		assert.Equal(t, want, req.Session.GrandchildCount, raw)
	}
}

func TestParseMemoRequestBuffers(t *testing.T) {
	values := url.Values{
		"user":              {"maeda"},
		"year":              {"2021"},
		"grandchildren":     {"4"},
		"self_name":         {"  Alice "},
		"self_note":         {"cake\x00 and tea\n"},
		"grandchild4_name":  {"Mio"},
		"grandchild4_note":  {"zoo"},
		"grandchild5_name":  {"ignored"},
		"spouse_name":       {"Bob"},
	}
	req := ParseMemoRequest(values, fixedNow)
	require.Equal(t, 4, req.Session.GrandchildCount)

	assert.Equal(t, core.Buffer{Name: "  Alice ", Note: "cake and tea\n"}, req.Session.Buffer(core.Self))
	assert.Equal(t, core.Buffer{Name: "Mio", Note: "zoo"}, req.Session.Buffer(core.Grandchild(4)))
	assert.Equal(t, core.Buffer{Name: "Bob"}, req.Session.Buffer(core.Spouse))
	assert.True(t, req.Posted[core.Spouse])
	assert.False(t, req.Posted[core.Grandchild(5)], "roles beyond the count are ignored")
	assert.False(t, req.Posted[core.Child1])
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "  a\tb\nc ", sanitizeInput("  a\tb\nc\x07 "))
	assert.Equal(t, "line one\nline two\n", sanitizeInput("line one\r\nline two\r\n"))
}
