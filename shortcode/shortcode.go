// Package shortcode derives short human-typeable debug codes from snapshot
// UUIDs and parses user-submitted codes back into lookup prefixes. The
// derivation is pure: a code is the first six characters of the dashless
// UUID, so no counter or extra storage is involved.
package shortcode

import (
	"errors"
	"strings"
)

// PrefixLength is the number of UUID characters carried by a debug code.
const PrefixLength = 6

// ErrMalformed is returned when a submitted code cannot be parsed into a
// UUID prefix. Distinct from a lookup miss: a malformed code never reaches
// the database.
var ErrMalformed = errors.New("malformed debug code")

// Registry issues and parses debug codes with a fixed display prefix.
type Registry struct {
	displayPrefix string
}

// New creates a Registry. displayPrefix is the human-facing code prefix,
// e.g. "DBG-".
func New(displayPrefix string) *Registry {
	return &Registry{displayPrefix: strings.ToUpper(displayPrefix)}
}

// Issue derives the debug code for a stored snapshot UUID, e.g.
// "abc123de-4567-..." -> "DBG-ABC123".
func (r *Registry) Issue(uuid string) string {
	stripped := strings.ReplaceAll(uuid, "-", "")
	if len(stripped) > PrefixLength {
		stripped = stripped[:PrefixLength]
	}
	return r.displayPrefix + strings.ToUpper(stripped)
}

// Normalize parses a user-submitted code into the six-character UUID prefix
// used for lookup. Input may carry surrounding whitespace, any casing, and
// optionally the display prefix. Returns ErrMalformed unless the remainder
// is exactly six alphanumeric characters.
func (r *Registry) Normalize(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", ErrMalformed
	}

	prefix := strings.TrimPrefix(normalized, r.displayPrefix)
	if len(prefix) != PrefixLength || !isAlphanumeric(prefix) {
		return "", ErrMalformed
	}
	return prefix, nil
}

func isAlphanumeric(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
