package session

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var idRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// NormalizeID trims surrounding whitespace and lowercases a session id.
// All entry points normalize before touching the registry or the store so
// "ABC " and "abc" name the same session.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ValidateID checks that a normalized id conforms to session naming rules.
// Ids become directory names under the storage root, so the character set
// is restricted.
func ValidateID(id string) error {
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid session id %q: must match ^[a-z0-9_-]{1,64}$", id)
	}
	return nil
}

// GenerateID returns a fresh short session id for creation requests that
// did not supply one.
func GenerateID() string {
	return uuid.NewString()[:8]
}
