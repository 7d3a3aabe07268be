package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New returns a UUIDv7 identifier string for stored rows.
// If UUIDv7 generation fails, it falls back to a random UUIDv4.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run returns a ULID naming one processing run. ULIDs sort by creation time.
func Run() string {
	return ulid.Make().String()
}
