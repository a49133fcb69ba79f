// Package database provides SurrealDB connectivity for learnsync.
//
// The Database interface wraps query execution, token authentication and LIVE
// queries so the remote store can run against a real connection or a fake.
// Query results keep the driver's {status, result} wrapper; Rows unwraps them.
package database
