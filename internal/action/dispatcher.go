package action

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/navigation"
	"github.com/gippro/learnsync/internal/remote"
	"github.com/gippro/learnsync/internal/syncer"
)

// StreakPolicy decides how much a module completion adds to the streak
type StreakPolicy string

const (
	StreakPerCompletion StreakPolicy = "per_completion"
	StreakNone          StreakPolicy = "none"
)

// Delta returns the streak increment for one completion
func (p StreakPolicy) Delta() int64 {
	if p == StreakNone {
		return 0
	}
	return 1
}

// Mirror is the local state the dispatcher reads before writing
type Mirror interface {
	Identity() *model.Identity
	Profile() model.Profile
	UpdateProfileLocal(fn func(p *model.Profile))
}

// Dispatcher turns user intents into remote mutations. It never writes the
// mirror for signed-in users; the resulting snapshot does.
type Dispatcher struct {
	store  remote.Store
	mirror Mirror
	layout syncer.Layout
	streak StreakPolicy
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	recent map[string]map[string]struct{} // uid -> completions the mirror has not confirmed yet

	wg sync.WaitGroup
}

// DispatcherConfig holds the dispatcher dependencies
type DispatcherConfig struct {
	Store        remote.Store
	Mirror       Mirror
	Layout       syncer.Layout
	StreakPolicy StreakPolicy
	Logger       *slog.Logger
	Now          func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:  cfg.Store,
		mirror: cfg.Mirror,
		layout: cfg.Layout,
		streak: cfg.StreakPolicy,
		logger: cfg.Logger,
		now:    cfg.Now,
		recent: make(map[string]map[string]struct{}),
	}
	if d.streak == "" {
		d.streak = StreakPerCompletion
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// CompleteModule records a completion: the module joins completedModules, xp
// grows by xpReward and the streak by the configured policy, all in one write.
// It is a no-op without a session or when the module is already completed.
func (d *Dispatcher) CompleteModule(ctx context.Context, moduleID string, xpReward int64) error {
	if moduleID == "" {
		return &model.ValidationError{Reason: model.ReasonInvalidField, Field: "moduleId"}
	}
	if xpReward < 0 {
		return &model.ValidationError{Reason: model.ReasonNegativeReward, Field: "xpReward"}
	}

	id := d.mirror.Identity()
	if id == nil {
		return nil
	}
	profile := d.mirror.Profile()
	if profile.HasCompleted(moduleID) || !d.claim(id.UID, moduleID) {
		return nil
	}

	mutations := []remote.Mutation{
		remote.AddToSet(model.FieldCompletedModules, moduleID),
		remote.Increment(model.FieldXP, xpReward),
	}
	if delta := d.streak.Delta(); delta != 0 {
		mutations = append(mutations, remote.Increment(model.FieldStreak, delta))
	}

	if err := d.store.Apply(ctx, d.layout.Profile(id.UID), mutations...); err != nil {
		d.release(id.UID, moduleID)
		return d.fail("complete_module", err, "module_id", moduleID)
	}

	d.logger.Info("module completed", "uid", id.UID, "module_id", moduleID, "xp", xpReward)
	return nil
}

// claim marks a completion as issued. It fails when one is already in flight
// or was written but the mirror has not listed it yet.
func (d *Dispatcher) claim(uid, moduleID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	done := d.recent[uid]
	if done == nil {
		done = make(map[string]struct{})
		d.recent[uid] = done
	}
	if _, ok := done[moduleID]; ok {
		return false
	}
	done[moduleID] = struct{}{}
	return true
}

func (d *Dispatcher) release(uid, moduleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.recent[uid], moduleID)
}

// Observe drops the claims of completions the mirrored profile now lists.
// From then on the mirror alone decides, so a module removed by another
// writer can be completed again. Register it with the engine's OnChange.
func (d *Dispatcher) Observe(c syncer.Change) {
	if c.Stream != syncer.StreamProfile || c.Err != nil {
		return
	}
	id := d.mirror.Identity()
	if id == nil {
		return
	}
	profile := d.mirror.Profile()

	d.mu.Lock()
	defer d.mu.Unlock()
	for moduleID := range d.recent[id.UID] {
		if profile.HasCompleted(moduleID) {
			delete(d.recent[id.UID], moduleID)
		}
	}
}

// ToggleSaveResource saves module as a reference, or removes it when already
// saved. Matching is by module id. Returns whether the module is now saved.
func (d *Dispatcher) ToggleSaveResource(ctx context.Context, module model.Module) (bool, error) {
	if module.ID == "" {
		return false, &model.ValidationError{Reason: model.ReasonInvalidField, Field: "id"}
	}
	id := d.mirror.Identity()
	if id == nil {
		return false, model.ErrNoSession
	}

	profile := d.mirror.Profile()
	ref := d.layout.Profile(id.UID)

	if profile.IsSaved(module.ID) {
		if err := d.store.Apply(ctx, ref, remote.DeleteKey(model.FieldSavedResources, module.ID)); err != nil {
			return true, d.fail("unsave_resource", err, "module_id", module.ID)
		}
		return false, nil
	}

	entry := map[string]interface{}{
		"id":       module.ID,
		"title":    module.Title,
		"courseId": string(module.CourseID),
		"savedAt":  d.now().UTC(),
	}
	if err := d.store.Apply(ctx, ref, remote.PutKey(model.FieldSavedResources, module.ID, entry)); err != nil {
		return false, d.fail("save_resource", err, "module_id", module.ID)
	}
	return true, nil
}

// CreatePost publishes a community post and returns its id. Invalid content
// is rejected before any remote call.
func (d *Dispatcher) CreatePost(ctx context.Context, content string, courseID model.CourseID) (string, error) {
	post := model.NewPost{Content: content, CourseID: courseID}
	if err := post.Validate(); err != nil {
		return "", err
	}

	id := d.mirror.Identity()
	if id == nil {
		return "", model.ErrNoSession
	}

	author := d.mirror.Profile().DisplayName
	if author == "" {
		author = model.AnonymousAuthor
	}

	postID, err := d.store.Create(ctx, d.layout.Posts, map[string]interface{}{
		"content":    post.Content,
		"courseId":   string(post.CourseID),
		"authorId":   id.UID,
		"authorName": author,
		"likes":      int64(0),
		"createdAt":  remote.ServerTimestamp,
	})
	if err != nil {
		return "", d.fail("create_post", err, "course_id", post.CourseID)
	}
	return postID, nil
}

// SaveProfile merges only the supplied fields. Without a session the update
// is applied to the local mirror.
func (d *Dispatcher) SaveProfile(ctx context.Context, update model.ProfileUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	if err := update.Validate(); err != nil {
		return err
	}

	id := d.mirror.Identity()
	if id == nil {
		d.mirror.UpdateProfileLocal(update.ApplyLocal)
		return nil
	}

	if err := d.store.Merge(ctx, d.layout.Profile(id.UID), update.Fields()); err != nil {
		return d.fail("save_profile", err)
	}
	return nil
}

// RequiresConfirmation reports that ResetProgress is destructive
func (d *Dispatcher) RequiresConfirmation() bool {
	return true
}

// ResetProgress zeroes xp, streak, completedModules and savedResources in one
// write. confirmed must be true.
func (d *Dispatcher) ResetProgress(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return model.ErrConfirmationRequired
	}
	id := d.mirror.Identity()
	if id == nil {
		return model.ErrNoSession
	}

	err := d.store.Apply(ctx, d.layout.Profile(id.UID),
		remote.Set(model.FieldXP, int64(0)),
		remote.Set(model.FieldStreak, int64(0)),
		remote.Set(model.FieldCompletedModules, []string{}),
		remote.Set(model.FieldSavedResources, map[string]interface{}{}),
	)
	if err != nil {
		return d.fail("reset_progress", err)
	}

	d.mu.Lock()
	delete(d.recent, id.UID)
	d.mu.Unlock()

	d.logger.Info("progress reset", "uid", id.UID)
	return nil
}

// ToggleDarkMode flips settings.darkMode with a field-path merge so sibling
// settings survive. Without a session the flip is local only.
func (d *Dispatcher) ToggleDarkMode(ctx context.Context) (bool, error) {
	next := !d.mirror.Profile().Settings.DarkMode

	id := d.mirror.Identity()
	if id == nil {
		d.mirror.UpdateProfileLocal(func(p *model.Profile) { p.Settings.DarkMode = next })
		return next, nil
	}

	if err := d.store.Merge(ctx, d.layout.Profile(id.UID), map[string]interface{}{model.FieldDarkMode: next}); err != nil {
		return !next, d.fail("toggle_dark_mode", err)
	}
	return next, nil
}

// RecordVisit counts a visit to the course behind destination. Destinations
// outside the catalog and sessionless hosts are ignored.
func (d *Dispatcher) RecordVisit(ctx context.Context, destination string) error {
	course, ok := navigation.CourseFor(destination)
	if !ok {
		return nil
	}
	id := d.mirror.Identity()
	if id == nil {
		return nil
	}

	if err := d.store.Apply(ctx, d.layout.Profile(id.UID), remote.Increment(model.VisitCountField(course), 1)); err != nil {
		return d.fail("record_visit", err, "course", course)
	}
	return nil
}

// Go runs fn on its own goroutine for hosts that must not block on the
// remote store. Errors are logged.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(ctx); err != nil {
			d.logger.Warn("background action failed", "action", name, "error", err)
		}
	}()
}

// Wait blocks until every action started with Go has returned
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) fail(op string, err error, attrs ...any) error {
	args := append([]any{"op", op, "error", err}, attrs...)
	d.logger.Error("mutation failed", args...)
	return &model.MutationError{Op: op, Err: err}
}
