// Package room derives the canonical identifier for a one-to-one
// conversation. The key is recomputed on demand and never stored as an
// entity of its own.
package room

import "regexp"

// Separator joins the two participant ids inside a room key. User ids are
// restricted to idAlphabet, so the separator can never occur inside an id and
// distinct unordered pairs always map to distinct keys.
const Separator = ":"

var idAlphabet = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ValidID reports whether id is non-empty and drawn from the allowed
// alphabet (letters, digits and dashes, which covers UUIDs and object ids).
func ValidID(id string) bool {
	return idAlphabet.MatchString(id)
}

// Key returns the room key for the unordered pair {a, b}. The smaller id by
// ordinal comparison always comes first, so Key(a, b) == Key(b, a).
func Key(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + Separator + b
}
