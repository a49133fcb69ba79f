// Package syncer mirrors the remote store into local state.
//
// The Engine owns five streams: the signed-in user's profile document and the
// course, post, video and update collections. Each stream moves through
// Unsubscribed, Subscribing and Live. Snapshots are merged into the mirror
// under a single mutex, and every subscription carries a generation so
// deliveries from a torn-down subscription are dropped.
//
// A stream error keeps the last good mirror, sets the stream's error flag and
// ends the subscription. It is not retried until the next identity change
// provisions the engine again.
package syncer
