// Package action dispatches user intents as remote mutations.
//
// The Dispatcher is the only writer of remote state. It reads the mirror to
// decide what to write but leaves the mirror alone when a session is active:
// the snapshot that follows a successful write updates it. Every failure is
// logged and returned as a model.MutationError; validation failures are
// returned as model.ValidationError before any remote call.
package action
