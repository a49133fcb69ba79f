// Package model defines the typed records mirrored from the remote document store.
//
// Remote documents are loosely shaped maps. Everything that crosses into local state is
// decoded here (see decode.go) so that the rest of the client only sees typed records
// with defined defaults:
//
//   - Profile: per-identity progress, saved resources, visit counts and settings
//   - Module: a lesson in one of the three courses, read-only
//   - Post: a community post, created once and never edited by the client
//   - Video: a video library entry, read-only
//   - Update: an announcement in the content stream, read-only
//
// # Partial updates
//
// Profile snapshots are merged shallowly: a field that is absent from the snapshot keeps
// its local value. ProfilePatch carries presence explicitly through pointer fields.
//
// # Error Types
//
// Client error sentinels and the RFC 9457 ProblemDetails used by the HTTP surface are
// defined in errors.go.
package model
