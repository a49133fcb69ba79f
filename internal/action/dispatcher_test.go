package action

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/remote"
	"github.com/gippro/learnsync/internal/syncer"
)

var testLayout = syncer.NewLayout("test-app")

type fixture struct {
	store  *remote.MemoryStore
	engine *syncer.Engine
	d      *Dispatcher
}

func setup(t *testing.T, policy StreakPolicy) *fixture {
	t.Helper()

	store := remote.NewMemoryStore()
	engine := syncer.NewEngine(store, testLayout, nil)
	t.Cleanup(engine.Stop)

	require.NoError(t, engine.Provision(context.Background(), &model.Identity{UID: "u1", Provider: model.ProviderAnonymous}))

	d := NewDispatcher(DispatcherConfig{
		Store:        store,
		Mirror:       engine,
		Layout:       testLayout,
		StreakPolicy: policy,
	})
	t.Cleanup(engine.OnChange(d.Observe))
	return &fixture{store: store, engine: engine, d: d}
}

func sessionless(t *testing.T) *fixture {
	t.Helper()

	store := remote.NewMemoryStore()
	engine := syncer.NewEngine(store, testLayout, nil)
	d := NewDispatcher(DispatcherConfig{Store: store, Mirror: engine, Layout: testLayout})
	return &fixture{store: store, engine: engine, d: d}
}

// staticMirror never reflects writes, like a mirror whose snapshot has not arrived yet
type staticMirror struct {
	identity *model.Identity
	profile  model.Profile
}

func (m *staticMirror) Identity() *model.Identity { return m.identity }

func (m *staticMirror) Profile() model.Profile { return m.profile.Clone() }

func (m *staticMirror) UpdateProfileLocal(fn func(p *model.Profile)) { fn(&m.profile) }

// failingStore fails the first n writes
type failingStore struct {
	*remote.MemoryStore
	failures atomic.Int64
}

var errRemoteDown = errors.New("remote unavailable")

func (f *failingStore) Apply(ctx context.Context, ref remote.Ref, mutations ...remote.Mutation) error {
	if f.failures.Add(-1) >= 0 {
		return errRemoteDown
	}
	return f.MemoryStore.Apply(ctx, ref, mutations...)
}

func (f *failingStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	if f.failures.Add(-1) >= 0 {
		return "", errRemoteDown
	}
	return f.MemoryStore.Create(ctx, collection, fields)
}

func savedKeys(p model.Profile) []string {
	keys := make([]string, 0, len(p.SavedResources))
	for k := range p.SavedResources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ============================================================================
// CompleteModule
// ============================================================================

func TestCompleteModule_Scenario(t *testing.T) {
	f := setup(t, StreakPerCompletion)

	require.NoError(t, f.d.CompleteModule(context.Background(), "m1", 100))

	p := f.engine.Profile()
	assert.Equal(t, int64(100), p.XP)
	assert.Equal(t, int64(1), p.Streak)
	assert.Equal(t, []string{"m1"}, p.CompletedModules)
}

func TestCompleteModule_Idempotent(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	require.NoError(t, f.d.CompleteModule(ctx, "m1", 100))
	writes := f.store.Writes()
	require.NoError(t, f.d.CompleteModule(ctx, "m1", 100))

	assert.Equal(t, writes, f.store.Writes(), "second completion issues no write")
	p := f.engine.Profile()
	assert.Equal(t, int64(100), p.XP)
	assert.Equal(t, int64(1), p.Streak)
	assert.Equal(t, []string{"m1"}, p.CompletedModules)
}

func TestCompleteModule_IdempotentBeforeSnapshot(t *testing.T) {
	store := remote.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Merge(ctx, testLayout.Profile("u1"), map[string]interface{}{"xp": int64(0)}))

	mirror := &staticMirror{identity: &model.Identity{UID: "u1"}, profile: model.NewProfile("u1")}
	d := NewDispatcher(DispatcherConfig{Store: store, Mirror: mirror, Layout: testLayout})

	require.NoError(t, d.CompleteModule(ctx, "m1", 50))
	require.NoError(t, d.CompleteModule(ctx, "m1", 50))

	doc, err := store.Get(ctx, testLayout.Profile("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(50), doc.Data["xp"])
	assert.Equal(t, int64(1), doc.Data["streak"])
}

func TestCompleteModule_AgainAfterResetByAnotherWriter(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	require.NoError(t, f.d.CompleteModule(ctx, "m1", 100))
	require.True(t, f.engine.Profile().HasCompleted("m1"))

	// another client zeroes the profile
	require.NoError(t, f.store.Apply(ctx, testLayout.Profile("u1"),
		remote.Set(model.FieldXP, int64(0)),
		remote.Set(model.FieldStreak, int64(0)),
		remote.Set(model.FieldCompletedModules, []string{}),
	))
	require.False(t, f.engine.Profile().HasCompleted("m1"))

	require.NoError(t, f.d.CompleteModule(ctx, "m1", 100))

	p := f.engine.Profile()
	assert.Equal(t, []string{"m1"}, p.CompletedModules)
	assert.Equal(t, int64(100), p.XP)
	assert.Equal(t, int64(1), p.Streak)
}

func TestCompleteModule_StreakPolicyNone(t *testing.T) {
	f := setup(t, StreakNone)

	require.NoError(t, f.d.CompleteModule(context.Background(), "m1", 100))
	require.NoError(t, f.d.CompleteModule(context.Background(), "m2", 20))

	p := f.engine.Profile()
	assert.Equal(t, int64(120), p.XP)
	assert.Zero(t, p.Streak)
	assert.ElementsMatch(t, []string{"m1", "m2"}, p.CompletedModules)
}

func TestCompleteModule_NoSession(t *testing.T) {
	f := sessionless(t)

	require.NoError(t, f.d.CompleteModule(context.Background(), "m1", 100))
	assert.Zero(t, f.store.Writes())
}

func TestCompleteModule_Validation(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	writes := f.store.Writes()

	err := f.d.CompleteModule(context.Background(), "m1", -5)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.ReasonNegativeReward, verr.Reason)

	assert.ErrorIs(t, f.d.CompleteModule(context.Background(), "", 5), model.ErrValidation)
	assert.Equal(t, writes, f.store.Writes())
}

func TestCompleteModule_FailureCanBeRetried(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: remote.NewMemoryStore()}
	store.failures.Store(1)
	require.NoError(t, store.Merge(ctx, testLayout.Profile("u1"), map[string]interface{}{"xp": int64(0)}))

	mirror := &staticMirror{identity: &model.Identity{UID: "u1"}, profile: model.NewProfile("u1")}
	d := NewDispatcher(DispatcherConfig{Store: store, Mirror: mirror, Layout: testLayout})

	err := d.CompleteModule(ctx, "m1", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMutation)
	assert.ErrorIs(t, err, errRemoteDown)

	require.NoError(t, d.CompleteModule(ctx, "m1", 10))
	doc, err := store.Get(ctx, testLayout.Profile("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), doc.Data["xp"])
}

// ============================================================================
// ToggleSaveResource
// ============================================================================

func TestToggleSaveResource_IsItsOwnInverse(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()
	module := model.Module{ID: "f1", CourseID: model.CourseForex, Title: "Pips"}

	before := savedKeys(f.engine.Profile())

	saved, err := f.d.ToggleSaveResource(ctx, module)
	require.NoError(t, err)
	assert.True(t, saved)
	p := f.engine.Profile()
	require.True(t, p.IsSaved("f1"))
	assert.Equal(t, "Pips", p.SavedResources["f1"].Title)
	assert.False(t, p.SavedResources["f1"].SavedAt.IsZero())

	saved, err = f.d.ToggleSaveResource(ctx, module)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, before, savedKeys(f.engine.Profile()))
}

func TestToggleSaveResource_MatchesByID(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	// the stored record carries a field the caller's module does not know about
	require.NoError(t, f.store.Apply(ctx, testLayout.Profile("u1"), remote.PutKey(model.FieldSavedResources, "s1", map[string]interface{}{
		"id":       "s1",
		"title":    "Closing",
		"courseId": "sales",
		"savedAt":  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		"note":     "re-read before calls",
	})))
	before := savedKeys(f.engine.Profile())
	require.Equal(t, []string{"s1"}, before)

	module := model.Module{ID: "s1", CourseID: model.CourseSales, Title: "Closing"}
	saved, err := f.d.ToggleSaveResource(ctx, module)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Empty(t, savedKeys(f.engine.Profile()))

	saved, err = f.d.ToggleSaveResource(ctx, module)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, before, savedKeys(f.engine.Profile()))
}

func TestToggleSaveResource_NoSession(t *testing.T) {
	f := sessionless(t)
	_, err := f.d.ToggleSaveResource(context.Background(), model.Module{ID: "f1"})
	assert.ErrorIs(t, err, model.ErrNoSession)
}

// ============================================================================
// CreatePost
// ============================================================================

func TestCreatePost_WhitespaceRejected(t *testing.T) {
	for _, f := range []*fixture{setup(t, StreakPerCompletion), sessionless(t)} {
		writes := f.store.Writes()

		_, err := f.d.CreatePost(context.Background(), "  ", model.CourseForex)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, model.ReasonEmptyContent, verr.Reason)
		assert.Equal(t, writes, f.store.Writes(), "no remote call")
	}
}

func TestCreatePost(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()
	require.NoError(t, f.d.SaveProfile(ctx, model.ProfileUpdate{DisplayName: strPtr("Ada L")}))

	id, err := f.d.CreatePost(ctx, "How do I size a position?", "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	posts := f.engine.Snapshot().Posts
	require.Len(t, posts, 1)
	assert.Equal(t, id, posts[0].ID)
	assert.Equal(t, model.CourseGeneral, posts[0].CourseID)
	assert.Equal(t, "u1", posts[0].AuthorID)
	assert.Equal(t, "Ada L", posts[0].AuthorName)
	assert.Zero(t, posts[0].Likes)
	assert.False(t, posts[0].CreatedAt.IsZero())
}

func TestCreatePost_Invalid(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	_, err := f.d.CreatePost(ctx, "hi", "cooking")
	assert.ErrorIs(t, err, model.ErrValidation)

	long := make([]byte, model.MaxPostContentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.d.CreatePost(ctx, string(long), model.CourseSales)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.ReasonContentTooLong, verr.Reason)
}

func TestCreatePost_RemoteFailure(t *testing.T) {
	store := &failingStore{MemoryStore: remote.NewMemoryStore()}
	store.failures.Store(1)
	mirror := &staticMirror{identity: &model.Identity{UID: "u1"}, profile: model.NewProfile("u1")}
	d := NewDispatcher(DispatcherConfig{Store: store, Mirror: mirror, Layout: testLayout})

	_, err := d.CreatePost(context.Background(), "hello", model.CourseDesign)
	var merr *model.MutationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "create_post", merr.Op)
}

// ============================================================================
// Profile and settings
// ============================================================================

func strPtr(s string) *string { return &s }

func TestSaveProfile_MergesOnlySuppliedFields(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	require.NoError(t, f.d.SaveProfile(ctx, model.ProfileUpdate{DisplayName: strPtr("Grace"), Bio: strPtr("Designer")}))
	require.NoError(t, f.d.SaveProfile(ctx, model.ProfileUpdate{JobTitle: strPtr("Lead")}))

	p := f.engine.Profile()
	assert.Equal(t, "Grace", p.DisplayName)
	assert.Equal(t, "Designer", p.Bio)
	assert.Equal(t, "Lead", p.JobTitle)
}

func TestSaveProfile_ValidationAndEmpty(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	writes := f.store.Writes()

	assert.NoError(t, f.d.SaveProfile(context.Background(), model.ProfileUpdate{}))
	assert.ErrorIs(t, f.d.SaveProfile(context.Background(), model.ProfileUpdate{DisplayName: strPtr("")}), model.ErrValidation)
	assert.Equal(t, writes, f.store.Writes())
}

func TestSaveProfile_NoSessionAppliesLocally(t *testing.T) {
	f := sessionless(t)

	require.NoError(t, f.d.SaveProfile(context.Background(), model.ProfileUpdate{DisplayName: strPtr("Offline")}))
	assert.Equal(t, "Offline", f.engine.Profile().DisplayName)
	assert.Zero(t, f.store.Writes())
}

func TestToggleDarkMode(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	on, err := f.d.ToggleDarkMode(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, f.engine.Profile().Settings.DarkMode)

	doc, err := f.store.Get(ctx, testLayout.Profile("u1"))
	require.NoError(t, err)
	settings, ok := doc.Data["settings"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, settings["darkMode"])

	off, err := f.d.ToggleDarkMode(ctx)
	require.NoError(t, err)
	assert.False(t, off)
	assert.False(t, f.engine.Profile().Settings.DarkMode)
}

func TestToggleDarkMode_KeepsSiblingSettings(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()
	require.NoError(t, f.store.Merge(ctx, testLayout.Profile("u1"), map[string]interface{}{"settings.language": "en"}))

	_, err := f.d.ToggleDarkMode(ctx)
	require.NoError(t, err)

	doc, err := f.store.Get(ctx, testLayout.Profile("u1"))
	require.NoError(t, err)
	settings := doc.Data["settings"].(map[string]interface{})
	assert.Equal(t, "en", settings["language"])
	assert.Equal(t, true, settings["darkMode"])
}

func TestToggleDarkMode_NoSession(t *testing.T) {
	f := sessionless(t)

	on, err := f.d.ToggleDarkMode(context.Background())
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, f.engine.Profile().Settings.DarkMode)
	assert.Zero(t, f.store.Writes())
}

// ============================================================================
// ResetProgress and RecordVisit
// ============================================================================

func TestResetProgress(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	require.NoError(t, f.d.CompleteModule(ctx, "m1", 100))
	require.NoError(t, f.d.CompleteModule(ctx, "m2", 40))
	_, err := f.d.ToggleSaveResource(ctx, model.Module{ID: "m1", CourseID: model.CourseForex})
	require.NoError(t, err)

	assert.True(t, f.d.RequiresConfirmation())
	writes := f.store.Writes()
	assert.ErrorIs(t, f.d.ResetProgress(ctx, false), model.ErrConfirmationRequired)
	assert.Equal(t, writes, f.store.Writes())

	require.NoError(t, f.d.ResetProgress(ctx, true))
	p := f.engine.Profile()
	assert.Zero(t, p.XP)
	assert.Zero(t, p.Streak)
	assert.Empty(t, p.CompletedModules)
	assert.Empty(t, p.SavedResources)

	// after a reset the module can be completed again
	require.NoError(t, f.d.CompleteModule(ctx, "m1", 100))
	assert.Equal(t, int64(100), f.engine.Profile().XP)
}

func TestResetProgress_FromDefaults(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	require.NoError(t, f.d.ResetProgress(context.Background(), true))

	p := f.engine.Profile()
	assert.Zero(t, p.XP)
	assert.Empty(t, p.CompletedModules)
}

func TestRecordVisit(t *testing.T) {
	f := setup(t, StreakPerCompletion)
	ctx := context.Background()

	require.NoError(t, f.d.RecordVisit(ctx, "course-forex"))
	require.NoError(t, f.d.RecordVisit(ctx, "course-forex"))
	require.NoError(t, f.d.RecordVisit(ctx, "course-design"))

	writes := f.store.Writes()
	require.NoError(t, f.d.RecordVisit(ctx, "community"))
	assert.Equal(t, writes, f.store.Writes())

	p := f.engine.Profile()
	assert.Equal(t, int64(2), p.VisitCounts[model.CourseForex])
	assert.Equal(t, int64(1), p.VisitCounts[model.CourseDesign])
	assert.Zero(t, p.VisitCounts[model.CourseSales])
}

func TestGo(t *testing.T) {
	f := setup(t, StreakPerCompletion)

	f.d.Go(context.Background(), "complete", func(ctx context.Context) error {
		return f.d.CompleteModule(ctx, "m9", 5)
	})
	f.d.Go(context.Background(), "failing", func(context.Context) error {
		return errors.New("ignored")
	})
	f.d.Wait()

	assert.Equal(t, int64(5), f.engine.Profile().XP)
}

func TestStreakPolicy_Delta(t *testing.T) {
	assert.Equal(t, int64(1), StreakPerCompletion.Delta())
	assert.Equal(t, int64(0), StreakNone.Delta())
	assert.Equal(t, int64(1), StreakPolicy("").Delta())
}
