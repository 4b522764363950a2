package state

import "errors"

var (
	// ErrSeedConflict is returned when a prefix is seeded on an AS that already holds a route for it.
	ErrSeedConflict = errors.New("seeding conflict")
	// ErrRankCycle is returned when the provider relationships contain a cycle.
	ErrRankCycle = errors.New("customer-provider cycle")
	// ErrInvariantViolation signals a logic bug in route processing, the simulation must stop.
	ErrInvariantViolation = errors.New("invariant violation")
	ErrUnknownAsn         = errors.New("unknown asn")
)
