// Package memory implements the store interfaces on go-memdb.
//
// A single Store satisfies every interface in package store. Write
// transactions are serialized and read transactions see a consistent
// snapshot, so the atomicity guarantees of the PostgreSQL backend hold here
// too. It backs unit tests and single-process deployments that don't
// configure DATABASE_URL.
package memory
