package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gippro/learnsync/internal/database"
)

// SurrealStore keeps each collection in a SurrealDB table of the same name.
// Subscriptions run a LIVE query per watch and re-read the watched records
// whenever a notification arrives.
type SurrealStore struct {
	db     database.Database
	logger *slog.Logger
}

// NewSurrealStore wraps an already connected database
func NewSurrealStore(db database.Database, logger *slog.Logger) *SurrealStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SurrealStore{db: db, logger: logger}
}

// Get reads one document
func (s *SurrealStore) Get(ctx context.Context, ref Ref) (Document, error) {
	if err := ref.validate(); err != nil {
		return Document{}, err
	}
	results, err := s.db.Query(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]interface{}{
		"tb": ref.Collection,
		"id": ref.ID,
	})
	if err != nil {
		return Document{}, err
	}
	rows := database.Rows(results)
	if len(rows) == 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return toDocument(rows[0], ref.ID), nil
}

// Merge upserts the given field paths
func (s *SurrealStore) Merge(ctx context.Context, ref Ref, fields map[string]interface{}) error {
	if err := ref.validate(); err != nil {
		return err
	}
	stmt, err := buildFieldSet(fields)
	if err != nil {
		return err
	}
	if stmt.Empty() {
		return nil
	}
	stmt.Var("tb", ref.Collection).Var("id", ref.ID)
	query := "UPSERT type::thing($tb, $id) " + stmt.Set() + " RETURN NONE"
	return s.db.Execute(ctx, query, stmt.Vars())
}

// Create inserts a record with a random key
func (s *SurrealStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := NewID()
	ref := Ref{Collection: collection, ID: id}
	if err := ref.validate(); err != nil {
		return "", err
	}
	stmt, err := buildFieldSet(fields)
	if err != nil {
		return "", err
	}
	stmt.Var("tb", collection).Var("id", id)
	query := "CREATE type::thing($tb, $id) RETURN NONE"
	if !stmt.Empty() {
		query = "CREATE type::thing($tb, $id) " + stmt.Set() + " RETURN NONE"
	}
	if err := s.db.Execute(ctx, query, stmt.Vars()); err != nil {
		return "", err
	}
	return id, nil
}

// Apply renders every mutation into a single UPDATE statement
func (s *SurrealStore) Apply(ctx context.Context, ref Ref, mutations ...Mutation) error {
	if err := ref.validate(); err != nil {
		return err
	}
	stmt, err := buildMutations(mutations)
	if err != nil {
		return err
	}
	if stmt.Empty() {
		return nil
	}
	stmt.Var("tb", ref.Collection).Var("id", ref.ID)
	query := "UPDATE type::thing($tb, $id) " + stmt.Set() + " RETURN id"
	results, err := s.db.Query(ctx, query, stmt.Vars())
	if err != nil {
		return err
	}
	if len(database.Rows(results)) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return nil
}

// WatchDocument subscribes to one record
func (s *SurrealStore) WatchDocument(ctx context.Context, ref Ref, onSnapshot DocumentHandler, onError ErrorHandler) (Subscription, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	refresh := func(ctx context.Context) error {
		doc, err := s.Get(ctx, ref)
		if errors.Is(err, ErrNotFound) {
			onSnapshot(Document{ID: ref.ID}, false)
			return nil
		}
		if err != nil {
			return err
		}
		onSnapshot(doc, true)
		return nil
	}
	match := func(ev database.LiveEvent) bool {
		return ev.RecordID == "" || ev.RecordID == ref.ID
	}
	return s.watch(ctx, ref.Collection, refresh, match, onError)
}

// WatchCollection subscribes to a whole table
func (s *SurrealStore) WatchCollection(ctx context.Context, collection string, onSnapshot CollectionHandler, onError ErrorHandler) (Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection", ErrInvalidPath)
	}
	refresh := func(ctx context.Context) error {
		docs, err := s.list(ctx, collection)
		if err != nil {
			return err
		}
		onSnapshot(docs)
		return nil
	}
	return s.watch(ctx, collection, refresh, func(database.LiveEvent) bool { return true }, onError)
}

// Close closes the underlying connection
func (s *SurrealStore) Close() error {
	return s.db.Close()
}

func (s *SurrealStore) list(ctx context.Context, collection string) ([]Document, error) {
	results, err := s.db.Query(ctx, "SELECT * FROM type::table($tb)", map[string]interface{}{"tb": collection})
	if err != nil {
		return nil, err
	}
	rows := database.Rows(results)
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toDocument(row, ""))
	}
	return docs, nil
}

// watch starts the LIVE query before the first read so no change between the
// two is missed
func (s *SurrealStore) watch(ctx context.Context, table string, refresh func(context.Context) error, match func(database.LiveEvent) bool, onError ErrorHandler) (Subscription, error) {
	live, err := s.db.Live(ctx, table)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &surrealSubscription{live: live, cancel: cancel}

	if err := refresh(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case ev, ok := <-live.Events:
				if !ok {
					if subCtx.Err() == nil && onError != nil {
						onError(fmt.Errorf("%w: live query on %s", ErrStreamClosed, table))
					}
					return
				}
				if !match(ev) {
					continue
				}
				if err := refresh(subCtx); err != nil && subCtx.Err() == nil {
					s.logger.Warn("live refresh failed", "table", table, "error", err)
					if onError != nil {
						onError(err)
					}
				}
			}
		}
	}()

	return sub, nil
}

type surrealSubscription struct {
	live   *database.LiveQuery
	cancel context.CancelFunc
	once   sync.Once
}

func (s *surrealSubscription) Close() {
	s.once.Do(func() {
		s.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.live.Kill(ctx)
	})
}

func toDocument(row map[string]interface{}, fallbackID string) Document {
	data := make(map[string]interface{}, len(row))
	for k, v := range row {
		if k == "id" {
			continue
		}
		data[k] = v
	}
	id := database.RecordKey(row["id"])
	if id == "" {
		id = fallbackID
	}
	return Document{ID: id, Data: data}
}

// surrealValue renders a value, turning ServerTimestamp into the database clock
func surrealValue(stmt *database.Statement, v interface{}) string {
	if _, ok := v.(serverTimestamp); ok {
		return "time::now()"
	}
	return stmt.Bind(normalize(v, time.Now().UTC()))
}

func buildFieldSet(fields map[string]interface{}) (*database.Statement, error) {
	stmt := database.NewStatement()
	for path, v := range fields {
		target, err := database.FieldPath(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		stmt.Assign(target, surrealValue(stmt, v))
	}
	return stmt, nil
}

func buildMutations(mutations []Mutation) (*database.Statement, error) {
	stmt := database.NewStatement()
	for _, m := range mutations {
		target, err := database.FieldPath(m.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		switch m.Op {
		case OpSet:
			stmt.Assign(target, surrealValue(stmt, m.Value))
		case OpIncrement:
			stmt.Assign(target, fmt.Sprintf("(%s OR 0) + %s", target, stmt.Bind(m.Value)))
		case OpAddToSet:
			stmt.Assign(target, fmt.Sprintf("array::union((%s OR []), [%s])", target, surrealValue(stmt, m.Value)))
		case OpRemoveFromSet:
			stmt.Assign(target, fmt.Sprintf("array::complement((%s OR []), [%s])", target, surrealValue(stmt, m.Value)))
		case OpPutKey, OpDeleteKey:
			keyed, err := database.KeyPath(m.Path, m.Key)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
			}
			if m.Op == OpPutKey {
				stmt.Assign(keyed, surrealValue(stmt, m.Value))
			} else {
				stmt.Assign(keyed, "NONE")
			}
		default:
			return nil, fmt.Errorf("%w: unknown op %s", ErrInvalidPath, m.Op)
		}
	}
	return stmt, nil
}
