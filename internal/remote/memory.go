package remote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is an in-process Store. Snapshots are delivered synchronously on
// the goroutine that caused the change, in commit order. Handlers must not
// write to the same store before returning.
type MemoryStore struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	docs     map[string]map[string]map[string]interface{}
	order    map[string][]string
	watchers map[string]map[uint64]*memoryWatcher
	nextID   uint64
	closed   bool

	now    func() time.Time
	writes atomic.Int64
}

type memoryWatcher struct {
	id         uint64
	collection string
	docID      string
	onDoc      DocumentHandler
	onColl     CollectionHandler
	onErr      ErrorHandler
	active     atomic.Bool
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for ServerTimestamp
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		docs:     make(map[string]map[string]map[string]interface{}),
		order:    make(map[string][]string),
		watchers: make(map[string]map[uint64]*memoryWatcher),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Writes returns the number of write calls (Merge, Create, Apply) received
func (s *MemoryStore) Writes() int64 {
	return s.writes.Load()
}

// Get reads one document
func (s *MemoryStore) Get(ctx context.Context, ref Ref) (Document, error) {
	if err := ref.validate(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Document{}, ErrClosed
	}
	data, ok := s.docs[ref.Collection][ref.ID]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return Document{ID: ref.ID, Data: cloneMap(data)}, nil
}

// Merge writes field paths, creating the document when absent
func (s *MemoryStore) Merge(ctx context.Context, ref Ref, fields map[string]interface{}) error {
	s.writes.Add(1)
	if err := ref.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	doc, exists := s.docs[ref.Collection][ref.ID]
	next := make(map[string]interface{})
	if exists {
		next = cloneMap(doc)
	}
	if err := applyFields(next, fields, s.now().UTC()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.put(ref.Collection, ref.ID, next)
	s.commit(ref.Collection, ref.ID)
	return nil
}

// Create adds a document under a generated id
func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	s.writes.Add(1)
	id := NewID()
	if err := (Ref{Collection: collection, ID: id}).validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	doc := make(map[string]interface{})
	if err := applyFields(doc, fields, s.now().UTC()); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.put(collection, id, doc)
	s.commit(collection, id)
	return id, nil
}

// Apply runs all mutations against a copy and swaps it in only if every one succeeds
func (s *MemoryStore) Apply(ctx context.Context, ref Ref, mutations ...Mutation) error {
	s.writes.Add(1)
	if err := ref.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	doc, ok := s.docs[ref.Collection][ref.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	next := cloneMap(doc)
	now := s.now().UTC()
	for _, m := range mutations {
		if err := applyMutation(next, m, now); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.put(ref.Collection, ref.ID, next)
	s.commit(ref.Collection, ref.ID)
	return nil
}

// WatchDocument subscribes to one document
func (s *MemoryStore) WatchDocument(ctx context.Context, ref Ref, onSnapshot DocumentHandler, onError ErrorHandler) (Subscription, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	return s.watch(&memoryWatcher{collection: ref.Collection, docID: ref.ID, onDoc: onSnapshot, onErr: onError})
}

// WatchCollection subscribes to a whole collection
func (s *MemoryStore) WatchCollection(ctx context.Context, collection string, onSnapshot CollectionHandler, onError ErrorHandler) (Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection", ErrInvalidPath)
	}
	return s.watch(&memoryWatcher{collection: collection, onColl: onSnapshot, onErr: onError})
}

// Fail delivers err to every watcher of collection, as a broken listener
// would. Error handlers run with no store lock held, so they may close
// subscriptions, resubscribe or write.
func (s *MemoryStore) Fail(collection string, err error) {
	s.mu.Lock()
	var targets []*memoryWatcher
	for _, w := range s.watchers[collection] {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	// wait out deliveries already in flight so the error lands after them
	s.notifyMu.Lock()
	s.notifyMu.Unlock()

	for _, w := range targets {
		if w.active.Load() && w.onErr != nil {
			w.onErr(err)
		}
	}
}

// Close drops all data and watchers
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, ws := range s.watchers {
		for _, w := range ws {
			w.active.Store(false)
		}
	}
	s.watchers = make(map[string]map[uint64]*memoryWatcher)
	return nil
}

func (s *MemoryStore) watch(w *memoryWatcher) (Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.nextID++
	w.id = s.nextID
	w.active.Store(true)
	if s.watchers[w.collection] == nil {
		s.watchers[w.collection] = make(map[uint64]*memoryWatcher)
	}
	s.watchers[w.collection][w.id] = w

	deliver := s.snapshotFor(w)
	s.notifyMu.Lock()
	s.mu.Unlock()
	deliver()
	s.notifyMu.Unlock()

	return &memorySubscription{store: s, w: w}, nil
}

func (s *MemoryStore) put(collection, id string, doc map[string]interface{}) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]interface{})
	}
	if _, exists := s.docs[collection][id]; !exists {
		s.order[collection] = append(s.order[collection], id)
	}
	s.docs[collection][id] = doc
}

// commit must be called with mu held; it releases mu and delivers snapshots
// to the interested watchers while holding notifyMu.
func (s *MemoryStore) commit(collection, id string) {
	var deliveries []func()
	for _, w := range s.watchers[collection] {
		if w.docID != "" && w.docID != id {
			continue
		}
		deliveries = append(deliveries, s.snapshotFor(w))
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, d := range deliveries {
		d()
	}
}

// snapshotFor captures the current view of w under mu and returns the call
// that hands it over
func (s *MemoryStore) snapshotFor(w *memoryWatcher) func() {
	if w.docID != "" {
		data, exists := s.docs[w.collection][w.docID]
		doc := Document{ID: w.docID}
		if exists {
			doc.Data = cloneMap(data)
		}
		return func() {
			if w.active.Load() && w.onDoc != nil {
				w.onDoc(doc, exists)
			}
		}
	}

	ids := s.order[w.collection]
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, Document{ID: id, Data: cloneMap(s.docs[w.collection][id])})
	}
	return func() {
		if w.active.Load() && w.onColl != nil {
			w.onColl(docs)
		}
	}
}

type memorySubscription struct {
	store *MemoryStore
	w     *memoryWatcher
	once  sync.Once
}

func (m *memorySubscription) Close() {
	m.once.Do(func() {
		m.w.active.Store(false)
		m.store.mu.Lock()
		delete(m.store.watchers[m.w.collection], m.w.id)
		m.store.mu.Unlock()
	})
}
