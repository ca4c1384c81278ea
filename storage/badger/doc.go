// Package badger implements the storage interfaces on BadgerDB. One
// embedded database backs all six stores; each store owns a key prefix.
// The vector store is a brute-force scan, which is adequate for the
// corpus sizes a single node ingests.
package badger
