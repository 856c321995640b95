// Package address defines the AddressSource capability: given an
// inclusive index range, produce the ordered sequence of addresses of
// that length. Implementations may suspend (derivation worker
// round-trip) and may fail with a discoveryerr.Derivation.
package address

import "context"

// Source derives addresses for a contiguous, non-empty index range.
// lastIndex must be >= firstIndex. Implementations must return exactly
// lastIndex-firstIndex+1 addresses, in ascending index order.
type Source interface {
	Derive(ctx context.Context, firstIndex, lastIndex uint32) ([]string, error)
}
