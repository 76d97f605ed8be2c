// Package mirror derives the secondary resource identities used to book a
// quota-N time slot N times in parallel. Each mirror identity is a name-based
// UUID seeded by the logical resource identity and the mirror's 1-based
// index, so re-derivation never needs a persisted mapping table.
package mirror

import (
	"strconv"

	"github.com/google/uuid"
)

// Derive returns the quota-1 mirror identities of the given logical resource.
// The logical identity itself is the first mirror and is not regenerated.
// The result is deterministic: the same (logical, quota) input always yields
// the same sequence.
func Derive(logical uuid.UUID, quota int) []uuid.UUID {
	if quota < 2 {
		return nil
	}

	mirrors := make([]uuid.UUID, 0, quota-1)
	for n := 1; n < quota; n++ {
		mirrors = append(mirrors, uuid.NewSHA1(logical, []byte(strconv.Itoa(n))))
	}
	return mirrors
}

// Set returns all quota mirror identities of a logical resource, the logical
// identity first.
func Set(logical uuid.UUID, quota int) []uuid.UUID {
	return append([]uuid.UUID{logical}, Derive(logical, quota)...)
}
