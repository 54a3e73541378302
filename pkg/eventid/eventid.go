// Package eventid generates DomainEvent identifiers as ULIDs: 128 bits like
// a UUID, but lexicographically sortable on their embedded timestamp, which
// gives the event store monotonic per-tenant ordering for free.
package eventid

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New mints a ULID seeded from t using a cryptographic entropy source.
func New(t time.Time) ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(t.UTC()), rand.Reader)
}

// Parse parses the canonical 26-character ULID string form.
func Parse(s string) (ulid.ULID, error) {
	return ulid.ParseStrict(s)
}
