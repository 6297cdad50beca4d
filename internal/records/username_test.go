package records

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"birthdaymemo/internal/core"
)

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "maedayuichi", want: "maedayuichi"},
		{name: "trimmed", in: "  guest  ", want: "guest"},
		{name: "unicode kept", in: "前田", want: "前田"},
		{name: "separators replaced", in: "a/b\\c d", want: "a_b_c_d"},
		{name: "leading dots stripped", in: "..hidden", want: "hidden"},
		{name: "dash and dot kept", in: "john.doe-2", want: "john.doe-2"},
		{name: "empty", in: "", wantErr: true},
		{name: "only spaces", in: "   ", wantErr: true},
		{name: "only separators", in: "///", wantErr: true},
		{name: "only dots", in: "...", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeUsername(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrEmptyUsername)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeUsernameSharesRecordForReplacedCharacters(t *testing.T) {
	for _, in := range []string{"a b", "a/b", "a_b", " a?b "} {
		got, err := SanitizeUsername(in)
		assert.NoError(t, err)
		assert.Equal(t, "a_b", got, in)
	}
}

func TestSanitizeUsernameTruncates(t *testing.T) {
	got, err := SanitizeUsername(strings.Repeat("あ", 100))
	assert.NoError(t, err)
	assert.Equal(t, maxUsernameRunes, len([]rune(got)))
}
