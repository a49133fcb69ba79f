package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/remote"
)

// ErrStopped is returned once the engine has been stopped
var ErrStopped = errors.New("sync engine stopped")

// Stream names one mirrored remote source
type Stream string

const (
	StreamProfile Stream = "profile"
	StreamCourses Stream = "courses"
	StreamPosts   Stream = "posts"
	StreamVideos  Stream = "videos"
	StreamUpdates Stream = "updates"
)

// Streams lists every stream in provisioning order
var Streams = []Stream{StreamProfile, StreamCourses, StreamPosts, StreamVideos, StreamUpdates}

// StreamState is the lifecycle position of a stream
type StreamState int

const (
	Unsubscribed StreamState = iota
	Subscribing
	Live
)

func (s StreamState) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribing:
		return "subscribing"
	case Live:
		return "live"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s StreamState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StreamState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unsubscribed":
		*s = Unsubscribed
	case "subscribing":
		*s = Subscribing
	case "live":
		*s = Live
	default:
		return fmt.Errorf("unknown stream state %q", text)
	}
	return nil
}

// StreamStatus is the externally visible status of a stream
type StreamStatus struct {
	State     StreamState `json:"state"`
	Failed    bool        `json:"failed"`
	Error     string      `json:"error,omitempty"`
	Snapshots int64       `json:"snapshots"`
}

// Change is delivered to observers after the mirror changed or a stream failed
type Change struct {
	Stream Stream
	Err    error
}

// State is a deep copy of the mirror
type State struct {
	Identity *model.Identity         `json:"identity"`
	Profile  model.Profile           `json:"profile"`
	Courses  model.Catalog           `json:"courses"`
	Posts    []model.Post            `json:"posts"`
	Videos   []model.Video           `json:"videos"`
	Updates  []model.Update          `json:"updates"`
	Streams  map[Stream]StreamStatus `json:"streams"`
}

type stream struct {
	state     StreamState
	gen       uint64
	sub       remote.Subscription
	err       error
	snapshots int64
}

// Engine owns the local mirror and its subscriptions
type Engine struct {
	store  remote.Store
	layout Layout
	logger *slog.Logger

	// provisionMu serializes identity transitions
	provisionMu sync.Mutex

	mu        sync.Mutex
	identity  *model.Identity
	profile   model.Profile
	courses   model.Catalog
	posts     []model.Post
	videos    []model.Video
	updates   []model.Update
	streams   map[Stream]*stream
	gen       uint64
	stopped   bool
	observers map[int]func(Change)
	nextObs   int
}

// NewEngine creates an engine over store
func NewEngine(store remote.Store, layout Layout, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:     store,
		layout:    layout,
		logger:    logger,
		streams:   make(map[Stream]*stream, len(Streams)),
		observers: make(map[int]func(Change)),
	}
	for _, s := range Streams {
		e.streams[s] = &stream{}
	}
	e.resetMirror("")
	return e
}

// HandleIdentity reacts to a session transition: nil tears everything down,
// an identity provisions the engine for it
func (e *Engine) HandleIdentity(ctx context.Context, identity *model.Identity) {
	if identity == nil {
		e.Teardown()
		return
	}
	if err := e.Provision(ctx, identity); err != nil {
		e.logger.Error("provisioning failed", "uid", identity.UID, "error", err)
	}
}

// Provision makes sure the profile document exists and every stream is
// subscribed for identity. Provisioning the current identity again only
// resubscribes streams that are not active; a different identity tears down first.
func (e *Engine) Provision(ctx context.Context, identity *model.Identity) error {
	if identity == nil || identity.UID == "" {
		return model.ErrNoSession
	}

	e.provisionMu.Lock()
	defer e.provisionMu.Unlock()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	same := e.identity.Same(identity)
	e.mu.Unlock()

	if !same {
		e.teardown()
		e.mu.Lock()
		cp := *identity
		e.identity = &cp
		e.resetMirror(identity.UID)
		e.mu.Unlock()

		if err := e.ensureProfile(ctx, identity.UID); err != nil {
			e.logger.Error("profile bootstrap failed", "uid", identity.UID, "error", err)
		}
		e.logger.Info("provisioning streams", "uid", identity.UID)
	}

	var errs []error
	for _, s := range Streams {
		if err := e.Subscribe(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ensureProfile creates the profile with defaults on first sight and stamps lastLogin
func (e *Engine) ensureProfile(ctx context.Context, uid string) error {
	ref := e.layout.Profile(uid)
	_, err := e.store.Get(ctx, ref)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		e.logger.Info("creating profile", "uid", uid)
		return e.store.Merge(ctx, ref, defaultProfileFields())
	case err != nil:
		return err
	}
	return e.store.Merge(ctx, ref, map[string]interface{}{model.FieldLastLogin: remote.ServerTimestamp})
}

// Subscribe opens s for the current identity. It is a no-op while s is
// Subscribing or Live.
func (e *Engine) Subscribe(ctx context.Context, s Stream) error {
	e.mu.Lock()
	st, ok := e.streams[s]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("unknown stream %q", s)
	}
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	if st.state != Unsubscribed {
		e.mu.Unlock()
		return nil
	}
	if e.identity == nil {
		e.mu.Unlock()
		return model.ErrNoSession
	}
	e.gen++
	gen := e.gen
	st.gen = gen
	st.state = Subscribing
	uid := e.identity.UID
	e.mu.Unlock()

	// The store may deliver the first snapshot before Watch returns, so the
	// engine lock must not be held here.
	sub, err := e.watch(ctx, s, uid, gen)

	e.mu.Lock()
	if st.gen != gen || st.state != Subscribing {
		e.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
		return nil
	}
	if err != nil {
		st.state = Unsubscribed
		st.gen = 0
		st.err = err
		e.mu.Unlock()
		e.logger.Error("subscribe failed", "stream", s, "error", err)
		e.notify(Change{Stream: s, Err: err})
		return fmt.Errorf("%w: %s: %v", model.ErrSubscription, s, err)
	}
	st.sub = sub
	st.state = Live
	e.mu.Unlock()

	e.logger.Debug("stream live", "stream", s, "uid", uid)
	return nil
}

func (e *Engine) watch(ctx context.Context, s Stream, uid string, gen uint64) (remote.Subscription, error) {
	onError := func(err error) { e.fail(s, gen, err) }

	if s == StreamProfile {
		return e.store.WatchDocument(ctx, e.layout.Profile(uid), func(doc remote.Document, exists bool) {
			e.apply(s, gen, func() {
				if exists {
					e.profile.Apply(model.DecodeProfilePatch(doc.Data))
				}
			})
		}, onError)
	}

	return e.store.WatchCollection(ctx, e.layout.Collection(s), func(docs []remote.Document) {
		// Decoding happens outside the lock; only the swap is serialized.
		switch s {
		case StreamCourses:
			catalog := groupModules(docs)
			e.apply(s, gen, func() { e.courses = catalog })
		case StreamPosts:
			posts := decodePosts(docs)
			e.apply(s, gen, func() { e.posts = posts })
		case StreamVideos:
			videos := decodeVideos(docs)
			e.apply(s, gen, func() { e.videos = videos })
		case StreamUpdates:
			updates := decodeUpdates(docs)
			e.apply(s, gen, func() { e.updates = updates })
		}
	}, onError)
}

// current reports whether a delivery for gen still belongs to s. Requires mu.
func (e *Engine) current(s Stream, gen uint64) (*stream, bool) {
	st := e.streams[s]
	if st.gen != gen || st.state == Unsubscribed {
		return nil, false
	}
	return st, true
}

func (e *Engine) apply(s Stream, gen uint64, merge func()) {
	e.mu.Lock()
	st, ok := e.current(s, gen)
	if !ok {
		e.mu.Unlock()
		e.logger.Debug("dropping stale snapshot", "stream", s, "gen", gen)
		return
	}
	merge()
	st.err = nil
	st.snapshots++
	e.mu.Unlock()

	e.notify(Change{Stream: s})
}

// fail freezes the mirror of s at its last good state and ends the subscription
func (e *Engine) fail(s Stream, gen uint64, err error) {
	e.mu.Lock()
	st, ok := e.current(s, gen)
	if !ok {
		e.mu.Unlock()
		return
	}
	st.err = err
	st.state = Unsubscribed
	st.gen = 0
	sub := st.sub
	st.sub = nil
	e.mu.Unlock()

	e.logger.Error("stream failed", "stream", s, "error", fmt.Errorf("%w: %v", model.ErrSubscription, err))
	if sub != nil {
		sub.Close()
	}
	e.notify(Change{Stream: s, Err: err})
}

// Unsubscribe closes s. It is a no-op when s has no active subscription.
func (e *Engine) Unsubscribe(s Stream) {
	e.mu.Lock()
	st, ok := e.streams[s]
	if !ok || st.state == Unsubscribed {
		e.mu.Unlock()
		return
	}
	sub := st.sub
	st.sub = nil
	st.state = Unsubscribed
	st.gen = 0
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Teardown closes every stream and discards the mirror
func (e *Engine) Teardown() {
	e.provisionMu.Lock()
	defer e.provisionMu.Unlock()
	e.teardown()
}

func (e *Engine) teardown() {
	for _, s := range Streams {
		e.Unsubscribe(s)
	}

	e.mu.Lock()
	had := e.identity != nil
	e.identity = nil
	e.resetMirror("")
	for _, st := range e.streams {
		st.err = nil
		st.snapshots = 0
	}
	e.mu.Unlock()

	if had {
		e.logger.Info("sync engine torn down")
		for _, s := range Streams {
			e.notify(Change{Stream: s})
		}
	}
}

// Stop tears down and refuses further provisioning. Safe to call twice.
func (e *Engine) Stop() {
	e.provisionMu.Lock()
	defer e.provisionMu.Unlock()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	e.teardown()
}

// resetMirror restores defaults. Requires mu.
func (e *Engine) resetMirror(uid string) {
	e.profile = model.NewProfile(uid)
	e.courses = model.NewCatalog()
	e.posts = []model.Post{}
	e.videos = []model.Video{}
	e.updates = []model.Update{}
}

// OnChange registers fn for mirror changes and returns a function that removes it.
// fn runs on the delivering goroutine and must not block.
func (e *Engine) OnChange(fn func(Change)) func() {
	e.mu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

func (e *Engine) notify(c Change) {
	e.mu.Lock()
	observers := make([]func(Change), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.mu.Unlock()

	for _, fn := range observers {
		fn(c)
	}
}

// Identity returns the provisioned identity, or nil
func (e *Engine) Identity() *model.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity == nil {
		return nil
	}
	id := *e.identity
	return &id
}

// Profile returns a copy of the profile mirror
func (e *Engine) Profile() model.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone()
}

// Courses returns a copy of the catalog mirror
func (e *Engine) Courses() model.Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.courses.Clone()
}

// UpdateProfileLocal mutates the profile mirror without a remote write, for
// hosts running without a session
func (e *Engine) UpdateProfileLocal(fn func(p *model.Profile)) {
	e.mu.Lock()
	fn(&e.profile)
	e.mu.Unlock()

	e.notify(Change{Stream: StreamProfile})
}

// Status returns the status of s
func (e *Engine) Status(s Stream) StreamStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked(s)
}

func (e *Engine) statusLocked(s Stream) StreamStatus {
	st, ok := e.streams[s]
	if !ok {
		return StreamStatus{}
	}
	status := StreamStatus{State: st.state, Failed: st.err != nil, Snapshots: st.snapshots}
	if st.err != nil {
		status.Error = st.err.Error()
	}
	return status
}

// Snapshot returns a deep copy of the whole mirror
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := State{
		Profile: e.profile.Clone(),
		Courses: e.courses.Clone(),
		Posts:   append([]model.Post{}, e.posts...),
		Videos:  append([]model.Video{}, e.videos...),
		Updates: append([]model.Update{}, e.updates...),
		Streams: make(map[Stream]StreamStatus, len(e.streams)),
	}
	if e.identity != nil {
		id := *e.identity
		state.Identity = &id
	}
	for _, s := range Streams {
		state.Streams[s] = e.statusLocked(s)
	}
	return state
}
