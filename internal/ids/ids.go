// Package ids mints the request identifiers echoed in X-Request-ID.
package ids

import "github.com/oklog/ulid/v2"

// New returns a ULID. Identifiers minted within one millisecond are
// monotonic, so request logs sort in arrival order.
func New() string {
	return ulid.Make().String()
}
