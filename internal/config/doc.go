// Package config manages application configuration for learnsync.
//
// The config package loads and validates configuration from environment variables.
// All configuration is centralized here to provide a single source of truth.
//
// # Configuration Loading
//
//	cfg, err := config.Load()
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS)
//   - StoreConfig: remote store backend and app id
//   - DatabaseConfig: SurrealDB connection settings
//   - RedisConfig: Redis connection settings
//   - SessionConfig: token and anonymous sign-in
//   - ChatConfig: chat completion endpoint and transcript window
//   - SyncConfig: streak policy and simulator tick
//
// Validate reports every problem at once using errors.Join.
package config
