package database

import (
	"context"
	"errors"
	"sync"
)

// Standard errors for database operations.
// Use errors.Is() to check these error types in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure (syntax error, invalid reference, etc.).
	ErrQuery = errors.New("query error")

	// ErrAuth indicates the database rejected a session token.
	ErrAuth = errors.New("database authentication error")
)

// Database defines the interface for database operations
type Database interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns results
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns a single result
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results (for mutations)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error

	// Authenticate switches the connection to a record-user session
	Authenticate(ctx context.Context, token string) error

	// Live starts a LIVE SELECT over a whole table
	Live(ctx context.Context, table string) (*LiveQuery, error)
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}

// Live query actions
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionClose  = "CLOSE"
)

// LiveEvent is one change notification from a LIVE query
type LiveEvent struct {
	Action   string
	RecordID string
	Record   map[string]interface{}
}

// LiveQuery is a running LIVE SELECT. Events closes once the query is killed
// or the connection drops.
type LiveQuery struct {
	ID     string
	Events <-chan LiveEvent

	once sync.Once
	kill func(ctx context.Context) error
	err  error
}

// NewLiveQuery wraps an event channel and the function that stops it
func NewLiveQuery(id string, events <-chan LiveEvent, kill func(ctx context.Context) error) *LiveQuery {
	return &LiveQuery{ID: id, Events: events, kill: kill}
}

// Kill stops the query. Safe to call more than once.
func (q *LiveQuery) Kill(ctx context.Context) error {
	q.once.Do(func() {
		if q.kill != nil {
			q.err = q.kill(ctx)
		}
	})
	return q.err
}
