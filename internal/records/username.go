package records

import (
	"strings"
	"unicode"

	"birthdaymemo/internal/core"
)

const maxUsernameRunes = 64

// SanitizeUsername maps a typed user name to a safe filename stem. Letters
// and digits of any script are kept; '-', '_' and '.' are kept; everything
// else becomes '_'. Leading dots are stripped. The mapping is not
// injective: "a b", "a/b" and "a_b" all name the same record.
func SanitizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	var b strings.Builder
	n := 0
	for _, r := range username {
		if n == maxUsernameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		n++
	}
	out := strings.TrimLeft(b.String(), ".")
	if strings.Trim(out, "_") == "" {
		return "", core.ErrEmptyUsername
	}
	return out, nil
}
