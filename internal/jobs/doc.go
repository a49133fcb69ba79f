// Package jobs runs background work that is independent of HTTP requests.
//
// Jobs follow one shape: Start launches a ticker loop, Stop closes it and
// waits, RunOnce performs a single iteration for tests or manual triggers,
// and IsRunning reports the state. Errors are logged, never fatal.
//
// Available jobs:
//
//   - PriceTicker: advances the practice market and publishes ticks
package jobs
