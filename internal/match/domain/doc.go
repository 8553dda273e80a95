// Package domain holds the volleyball match aggregate and its value types.
//
// The Match aggregate is the consistency boundary: score, set progression,
// serve rotation, and completion are only mutated through its operations,
// and every mutation queues the domain events downstream consumers need to
// rebuild a summary view without re-reading the aggregate.
package domain
