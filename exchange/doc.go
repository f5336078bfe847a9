// Package exchange assigns gift-giving pairs for a group exchange.
//
// An Engine holds the participant registry. Build produces a pairing where
// nobody gives to themselves, nobody gives to a participant on their
// blacklist, and every participant receives exactly one gift. The giftee
// relation is therefore a derangement made of one or more disjoint cycles.
//
// # Algorithm
//
// Build is a greedy random walk with whole-registry restarts:
//
//  1. Shuffle the participant ids.
//  2. For each id, pick a random giftee among the participants that are not
//     the giver, not yet assigned and not blacklisted by the giver.
//  3. When a giver has no candidates, reset everything and start over.
//
// There is no backtracking inside an attempt. Build gives up after
// DefaultMaxAttempts attempts (see WithMaxAttempts) and returns an error
// wrapping ErrAssignmentExhausted. It is not a uniform sampler over all valid
// derangements.
//
// # Restoring
//
// LoadState rehydrates a persisted pairing without re-running the algorithm,
// for reminder sends. Pairs and LoadState round-trip.
//
// Example:
//
//	engine, err := exchange.New(map[string]exchange.Attributes{
//		"ann": {Name: "Ann", Email: "ann@example.com"},
//		"bob": {Name: "Bob", Email: "bob@example.com"},
//		"cat": {Name: "Cat", Blacklist: []string{"ann"}},
//	})
//	if err != nil { /* handle */ }
//	snapshot, err := engine.Build()
//	if err != nil { /* handle */ }
//	giftee, _ := snapshot.Giftee("ann")
package exchange
