// Package ids generates the opaque identifiers used for agents, messages,
// and tasks throughout the coordination runtime.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a new identifier prefixed with tag, e.g. "executor-3f1c9a...".
// The random component is a UUIDv4; the tag is used verbatim.
func New(tag string) string {
	return tag + "-" + uuid.NewString()
}

// Short is like New but truncates the random component to 8 hex characters,
// useful for log-friendly correlation ids where full uniqueness pressure is
// low (single process, short-lived).
func Short(tag string) string {
	full := uuid.New().String()
	full = strings.ReplaceAll(full, "-", "")
	if len(full) > 8 {
		full = full[:8]
	}
	return tag + "-" + full
}
