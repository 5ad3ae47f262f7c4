package requestid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Header carries the request ID in both directions
const Header = "X-Request-ID"

// MaxLength matches the length of a UUID string
const MaxLength = 36

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-{2,}`)
)

// New returns a random UUID
func New() string {
	return uuid.New().String()
}

// Resolve returns the client's ID reduced to [a-zA-Z0-9-] and capped at MaxLength,
// or a new UUID when nothing usable remains.
func Resolve(clientID string) string {
	id := strings.ReplaceAll(clientID, " ", "-")
	id = invalidChars.ReplaceAllString(id, "")
	id = hyphenRuns.ReplaceAllString(id, "-")
	if len(id) > MaxLength {
		id = id[:MaxLength]
	}
	id = strings.Trim(id, "-")

	if id == "" {
		return New()
	}
	return id
}
