package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9\s-]`)
var slugSpaces = regexp.MustCompile(`\s+`)

// MakeSlug derives a stable project id from a display name: lowercase,
// punctuation stripped, spaces collapsed to dashes, capped at 60 runes,
// plus a 6-char random hex suffix to keep ids unique across projects
// with the same name.
func MakeSlug(name string) string {
	base := strings.ToLower(name)
	base = slugStrip.ReplaceAllString(base, "")
	base = strings.TrimSpace(base)
	base = slugSpaces.ReplaceAllString(base, "-")
	if len(base) > 60 {
		base = base[:60]
	}
	return base + "-" + randomHex(6)
}

// randomHex returns n hex characters sourced from a random UUID.
func randomHex(n int) string {
	u := uuid.New()
	s := fmt.Sprintf("%x", u[:])
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
