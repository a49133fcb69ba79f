package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// NewID returns an id for a created document. ULIDs sort by creation time.
func NewID() string {
	return ulid.Make().String()
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidPath indicates a field path or key that cannot be addressed.
	ErrInvalidPath = errors.New("invalid field path")

	// ErrConflict indicates an optimistic mutation lost every retry.
	ErrConflict = errors.New("concurrent modification")

	// ErrStreamClosed indicates a subscription ended without being closed by the caller.
	ErrStreamClosed = errors.New("stream closed")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// Ref addresses one document
type Ref struct {
	Collection string
	ID         string
}

// Doc returns a reference to collection/id
func Doc(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

func (r Ref) validate() error {
	if r.Collection == "" || r.ID == "" {
		return fmt.Errorf("%w: incomplete reference %q", ErrInvalidPath, r.String())
	}
	return nil
}

// Document is a decoded snapshot of one record. Data never includes the id.
type Document struct {
	ID   string
	Data map[string]interface{}
}

type serverTimestamp struct{}

// ServerTimestamp is replaced with the store's clock when written
var ServerTimestamp = serverTimestamp{}

// Snapshot handlers. A document handler receives exists=false when the
// document is absent.
type (
	DocumentHandler   func(doc Document, exists bool)
	CollectionHandler func(docs []Document)
	ErrorHandler      func(err error)
)

// Subscription is an active watch
type Subscription interface {
	Close()
}

// Store is the remote document store
type Store interface {
	// Get reads one document. Missing documents return ErrNotFound.
	Get(ctx context.Context, ref Ref) (Document, error)

	// Merge writes the given field paths, creating the document if needed.
	Merge(ctx context.Context, ref Ref, fields map[string]interface{}) error

	// Create adds a document with a generated id and returns the id.
	Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error)

	// Apply runs the mutations as one atomic write on an existing document.
	Apply(ctx context.Context, ref Ref, mutations ...Mutation) error

	// WatchDocument subscribes to one document.
	WatchDocument(ctx context.Context, ref Ref, onSnapshot DocumentHandler, onError ErrorHandler) (Subscription, error)

	// WatchCollection subscribes to every document of a collection.
	WatchCollection(ctx context.Context, collection string, onSnapshot CollectionHandler, onError ErrorHandler) (Subscription, error)

	Close() error
}

// Op is a mutation kind
type Op int

const (
	OpSet Op = iota
	OpIncrement
	OpAddToSet
	OpRemoveFromSet
	OpPutKey
	OpDeleteKey
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpIncrement:
		return "increment"
	case OpAddToSet:
		return "add_to_set"
	case OpRemoveFromSet:
		return "remove_from_set"
	case OpPutKey:
		return "put_key"
	case OpDeleteKey:
		return "delete_key"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Mutation is one server-side field operation
type Mutation struct {
	Op    Op
	Path  string
	Key   string
	Value interface{}
}

// Set replaces the value at path
func Set(path string, value interface{}) Mutation {
	return Mutation{Op: OpSet, Path: path, Value: value}
}

// Increment adds delta to the number at path; a missing value counts as 0
func Increment(path string, delta int64) Mutation {
	return Mutation{Op: OpIncrement, Path: path, Value: delta}
}

// AddToSet appends value to the array at path unless already present
func AddToSet(path string, value interface{}) Mutation {
	return Mutation{Op: OpAddToSet, Path: path, Value: value}
}

// RemoveFromSet removes every element equal to value from the array at path
func RemoveFromSet(path string, value interface{}) Mutation {
	return Mutation{Op: OpRemoveFromSet, Path: path, Value: value}
}

// PutKey stores value under key in the object at path
func PutKey(path, key string, value interface{}) Mutation {
	return Mutation{Op: OpPutKey, Path: path, Key: key, Value: value}
}

// DeleteKey removes key from the object at path
func DeleteKey(path, key string) Mutation {
	return Mutation{Op: OpDeleteKey, Path: path, Key: key}
}
