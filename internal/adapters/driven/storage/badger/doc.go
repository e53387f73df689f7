// Package badger provides an embedded Badger implementation of driven.DocumentStore.
//
// Records are stored through badgerhold. Multi-record changes (chunk replacement,
// cascading deletes, claims) run inside a single Badger transaction.
package badger
