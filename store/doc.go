// Package store provides key-value store adapters for the virtual file
// engine.
//
// Two backends implement the root package's Provider/Conn/Txn capability
// set:
//
//   - Memory: an ordered in-memory map, for tests and ephemeral use.
//   - Badger: a persistent store backed by BadgerDB.
//
// Both give each open file handle its own connection and run every
// engine operation inside one atomic transaction: either all puts and
// deletes in a call become visible together, or none do.
package store
