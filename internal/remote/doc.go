// Package remote is the document store boundary.
//
// A Store offers keyed reads, field-path merges, server-side atomic mutations and
// change subscriptions over documents grouped in collections. Three backends are
// provided: SurrealStore (SurrealDB, LIVE queries), RedisStore (JSON documents
// with keyspace pub/sub) and MemoryStore (in-process).
//
// # Field paths
//
// Merge and Apply address fields with dotted paths such as "settings.darkMode".
// Writing a path never replaces sibling fields of the enclosing object.
//
// # Subscriptions
//
// WatchDocument and WatchCollection deliver a full snapshot immediately and again
// after every change. Closing a Subscription is idempotent. A delivery already in
// flight when Close is called may still complete, so consumers must discard
// snapshots that arrive for a subscription they have dropped.
package remote
