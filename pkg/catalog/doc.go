// Package catalog is the registry of named, risk-leveled permissions.
//
// Every permission is identified by a key of the form <category>.<verb>
// such as "users.delete". A key determines all other fields of its entry
// forever: registering the same key with identical fields is a no-op, and
// registering it with different fields fails with ErrDuplicateKey. There is
// no removal; Deprecate flags an entry so it can no longer be granted while
// historical audit entries still resolve it.
package catalog
