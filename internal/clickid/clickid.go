// Package clickid mints the public tracking tokens that correlate a single
// visitor click across every downstream record.
package clickid

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix marks linktrack click identifiers in URLs and logs.
const Prefix = "clk_"

// New returns a collision-resistant click identifier suitable for use as a
// public-facing tracking token. Safe for concurrent use; there is no shared
// counter or other coordination.
func New() string {
	id := uuid.New()
	return Prefix + strings.ReplaceAll(id.String(), "-", "")
}

// IsValid reports whether s has the shape of a linktrack click identifier.
func IsValid(s string) bool {
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	hexPart := s[len(Prefix):]
	if len(hexPart) != 32 {
		return false
	}
	for _, r := range hexPart {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
