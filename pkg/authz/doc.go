// Package authz implements the authorization engine: a denormalized
// projection of the users/groups/resources graph into a redis hash,
// plus the per-request decision middleware that consumes it.
//
// The cache holds one entry per (user, group, resource) combination
// reachable through a non-blocked user and a non-blocked group. Keys
// follow the schema "{userId}:{groupId}:{resourceName}" inside the
// hash namespace "auth"; values are JSON permission flags. The cache
// is a pure projection of the relational store and is rebuilt in full
// after every mutation of the underlying graph; there is no
// incremental update path, which keeps cache and store from drifting.
//
// A rebuild clears the namespace and repopulates it entry by entry.
// Lookups racing a rebuild may observe an empty or partially loaded
// cache and deny access until the rebuild completes. That window is an
// accepted consistency gap: the store remains the system of record and
// the cache converges after the rebuild finishes.
package authz
