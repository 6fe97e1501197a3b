package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/forumport/internal/entities"
	"github.com/mrlokans/forumport/internal/lookup"
	"github.com/mrlokans/forumport/internal/staging"
	"github.com/mrlokans/forumport/internal/target"
	"github.com/mrlokans/forumport/internal/uploads"
)

// fakeTarget records every create call and hands out sequential ids.
type fakeTarget struct {
	nextID     int64
	users      []target.UserFields
	categories []target.CategoryFields
	topics     []target.TopicFields
	posts      []target.PostFields
	uploads    []string

	// failAfter, when positive, makes every create call past the first N
	// fail, simulating a run cut short mid-way.
	failAfter int
	creates   int

	// failPostsOnce makes the next N CreatePost calls fail, simulating a
	// transient target error that a later retry recovers from.
	failPostsOnce int
}

func (f *fakeTarget) maybeFail() error {
	f.creates++
	if f.failAfter > 0 && f.creates > f.failAfter {
		return fmt.Errorf("target unavailable")
	}
	return nil
}

func (f *fakeTarget) CreateUser(_ context.Context, fields target.UserFields) (int64, error) {
	if err := f.maybeFail(); err != nil {
		return 0, err
	}
	f.nextID++
	f.users = append(f.users, fields)
	return f.nextID, nil
}

func (f *fakeTarget) CreateCategory(_ context.Context, fields target.CategoryFields) (int64, error) {
	if err := f.maybeFail(); err != nil {
		return 0, err
	}
	f.nextID++
	f.categories = append(f.categories, fields)
	return f.nextID, nil
}

func (f *fakeTarget) CreateTopic(_ context.Context, fields target.TopicFields) (target.TopicResult, error) {
	if err := f.maybeFail(); err != nil {
		return target.TopicResult{}, err
	}
	f.nextID++
	postID := f.nextID
	f.nextID++
	f.topics = append(f.topics, fields)
	return target.TopicResult{PostID: postID, TopicID: f.nextID}, nil
}

func (f *fakeTarget) CreatePost(_ context.Context, fields target.PostFields) (int64, error) {
	if f.failPostsOnce > 0 {
		f.failPostsOnce--
		return 0, fmt.Errorf("target unavailable")
	}
	if err := f.maybeFail(); err != nil {
		return 0, err
	}
	f.nextID++
	f.posts = append(f.posts, fields)
	return f.nextID, nil
}

func (f *fakeTarget) UploadFile(_ context.Context, _ int64, _, filename string) (target.Upload, error) {
	f.nextID++
	f.uploads = append(f.uploads, filename)
	return target.Upload{ID: f.nextID, ShortURL: "upload://" + filename}, nil
}

func (f *fakeTarget) RenderReference(upload target.Upload, filename string) string {
	return fmt.Sprintf("[%s](%s)", filename, upload.ShortURL)
}

func (f *fakeTarget) SetAvatar(_ context.Context, _ string, _ int64) error { return nil }

func (f *fakeTarget) RegisterPermalink(_ context.Context, _ string, _ target.PermalinkRef) error {
	return nil
}

// recordingEffects captures post-create side effects.
type recordingEffects struct {
	avatars    []string
	permalinks []string
}

func (r *recordingEffects) AvatarImport(_ int64, username, _ string) {
	r.avatars = append(r.avatars, username)
}

func (r *recordingEffects) RegisterPermalink(oldURL string, _ target.PermalinkRef) {
	r.permalinks = append(r.permalinks, oldURL)
}

type testEnv struct {
	store  *staging.Store
	fake   *fakeTarget
	opts   Options
	dbPath string
}

func setupEnv(t *testing.T) *testEnv {
	dbPath := "./test_pipeline_" + t.Name() + ".db"

	store, err := staging.Open(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
		os.Remove(dbPath)
	})

	return &testEnv{
		store:  store,
		fake:   &fakeTarget{},
		dbPath: dbPath,
		opts: Options{
			Store:             store,
			Target:            nil, // set in run()
			SourceTag:         "phpbb",
			PageSize:          2,
			ResolverPasses:    2,
			SystemUserID:      -1,
			DefaultCategoryID: 1,
		},
	}
}

// run executes the pipeline with a fresh lookup over the same staging
// database, the same way a restarted process would.
func (e *testEnv) run(t *testing.T) *RunSummary {
	lk, err := lookup.Open(e.store.DB, e.opts.SourceTag)
	require.NoError(t, err)

	opts := e.opts
	opts.Lookup = lk
	opts.Target = e.fake

	imp, err := New(opts)
	require.NoError(t, err)

	summary, err := imp.Run(context.Background())
	require.NoError(t, err)
	return summary
}

func stageSmallForum(t *testing.T, store *staging.Store) {
	require.NoError(t, store.InsertCategory(&entities.StagingCategory{NativeID: "1", Name: "General"}))
	require.NoError(t, store.InsertUser(&entities.StagingUser{NativeID: "u1", Name: "Alice", Email: "a@x.com", Active: true}))
	require.NoError(t, store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "Hello", Raw: "World",
		CategoryNativeID: "1", AuthorNativeID: "u1",
		PostedAt: time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.InsertPost(&entities.StagingPost{
		NativeID: "p1", TopicNativeID: "t1", AuthorNativeID: "u1", Raw: "Reply",
		PostedAt: time.Date(2020, 1, 1, 11, 0, 0, 0, time.UTC),
	}))
}

func TestRun_SmallForum(t *testing.T) {
	env := setupEnv(t)
	stageSmallForum(t, env.store)

	summary := env.run(t)

	require.Len(t, env.fake.categories, 1)
	assert.Equal(t, "General", env.fake.categories[0].Name)
	require.Len(t, env.fake.users, 1)
	assert.Equal(t, "a@x.com", env.fake.users[0].Email)
	require.Len(t, env.fake.topics, 1)
	assert.Equal(t, "Hello", env.fake.topics[0].Title)
	require.Len(t, env.fake.posts, 1)
	assert.Equal(t, "Reply", env.fake.posts[0].Raw)

	// The reply landed in the thread the topic creation opened.
	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	topicID, ok := lk.TopicID("t1")
	require.True(t, ok)
	assert.Equal(t, topicID, env.fake.posts[0].TopicID)

	// Four mappings, one per created entity.
	assert.Equal(t, 1, lk.Count(entities.KindUser))
	assert.Equal(t, 1, lk.Count(entities.KindCategory))
	assert.Equal(t, 1, lk.Count(entities.KindTopic))
	assert.Equal(t, 1, lk.Count(entities.KindPost))

	assert.Equal(t, 1, summary.Users.Created)
	assert.Equal(t, 1, summary.Categories.Created)
	assert.Equal(t, 1, summary.Topics.Created)
	assert.Equal(t, 1, summary.Posts.Created)
	assert.Empty(t, summary.PermanentlySkipped)
}

func TestRun_IdempotentRerun(t *testing.T) {
	env := setupEnv(t)
	stageSmallForum(t, env.store)

	env.run(t)
	second := env.run(t)

	// Nothing is created twice, and the mapping table is unchanged.
	assert.Len(t, env.fake.users, 1)
	assert.Len(t, env.fake.categories, 1)
	assert.Len(t, env.fake.topics, 1)
	assert.Len(t, env.fake.posts, 1)

	assert.Equal(t, 0, second.Users.Created)
	assert.Equal(t, 0, second.Categories.Created)
	assert.Equal(t, 0, second.Topics.Created)
	assert.Equal(t, 0, second.Posts.Created)
	assert.Equal(t, 1, second.Users.Skipped)
	assert.Equal(t, 1, second.Posts.Skipped)

	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	assert.Equal(t, 1, lk.Count(entities.KindPost))
}

func TestRun_ResumptionAfterInterruption(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	base := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		require.NoError(t, env.store.InsertUser(&entities.StagingUser{
			NativeID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("User %d", i),
		}))
		require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
			NativeID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Topic %d", i),
			Raw: "body", AuthorNativeID: fmt.Sprintf("u%d", i),
			PostedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	// First run dies after four successful creates.
	env.fake.failAfter = 4
	first := env.run(t)
	assert.Less(t, first.Users.Created+first.Topics.Created, 10)

	// Restart against the same staging store with a healthy target.
	env.fake.failAfter = 0
	env.fake.creates = 0
	env.run(t)

	assert.Len(t, env.fake.users, 5, "every user exactly once across both runs")
	assert.Len(t, env.fake.topics, 5, "every topic exactly once across both runs")

	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	assert.Equal(t, 5, lk.Count(entities.KindUser))
	assert.Equal(t, 5, lk.Count(entities.KindTopic))
}

func TestRun_DeferredPostsConverge(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	base := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)

	// Replies recorded before their topics in creation-time order: the
	// content pass defers them, the resolver attaches them afterwards.
	require.NoError(t, env.store.InsertPost(&entities.StagingPost{
		NativeID: "pa", TopicNativeID: "t1", Raw: "early reply one", PostedAt: base,
	}))
	require.NoError(t, env.store.InsertPost(&entities.StagingPost{
		NativeID: "pb", TopicNativeID: "t2", Raw: "early reply two", PostedAt: base.Add(time.Minute),
	}))
	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "First", Raw: "body", PostedAt: base.Add(time.Hour),
	}))
	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t2", Title: "Second", Raw: "body", PostedAt: base.Add(2 * time.Hour),
	}))

	summary := env.run(t)

	require.Len(t, env.fake.posts, 2)
	assert.Equal(t, 2, summary.Posts.Created)
	assert.Equal(t, 0, summary.Posts.Deferred)
	assert.Empty(t, summary.PermanentlySkipped)

	// Each reply is attached to the thread its native topic id maps to.
	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	t1, _ := lk.TopicID("t1")
	t2, _ := lk.TopicID("t2")
	assert.Equal(t, t1, env.fake.posts[0].TopicID)
	assert.Equal(t, t2, env.fake.posts[1].TopicID)
}

func TestRun_RetriedFailedPostCountedOnce(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	base := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "First", Raw: "body", PostedAt: base,
	}))
	require.NoError(t, env.store.InsertPost(&entities.StagingPost{
		NativeID: "p1", TopicNativeID: "t1", Raw: "flaky reply", PostedAt: base.Add(time.Hour),
	}))

	// The reply fails at the target during the content pass and succeeds on
	// the retry; the failure tally moves with it instead of double counting.
	env.fake.failPostsOnce = 1
	summary := env.run(t)

	require.Len(t, env.fake.posts, 1)
	assert.Equal(t, 1, summary.Posts.Created)
	assert.Equal(t, 0, summary.Posts.Failed)
	assert.Equal(t, 0, summary.Posts.Deferred)
}

func TestRun_MissingParentReportedNotDropped(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertPost(&entities.StagingPost{
		NativeID: "orphan", TopicNativeID: "ghost", Raw: "who is my parent",
		PostedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	summary := env.run(t)

	assert.Empty(t, env.fake.posts)
	require.Len(t, summary.PermanentlySkipped, 1)
	assert.Equal(t, entities.KindPost, summary.PermanentlySkipped[0].Kind)
	assert.Equal(t, "orphan", summary.PermanentlySkipped[0].NativeID)
	assert.Contains(t, summary.PermanentlySkipped[0].Reason, "ghost")
}

func TestRun_CategoryTreeInAnyOrder(t *testing.T) {
	env := setupEnv(t)

	// The child sorts before its parent in native-id order.
	require.NoError(t, env.store.InsertCategory(&entities.StagingCategory{
		NativeID: "a-child", Name: "Child", ParentNativeID: "b-parent",
	}))
	require.NoError(t, env.store.InsertCategory(&entities.StagingCategory{
		NativeID: "b-parent", Name: "Parent",
	}))

	summary := env.run(t)

	assert.Equal(t, 2, summary.Categories.Created)
	require.Len(t, env.fake.categories, 2)

	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	parentID, ok := lk.TargetID(entities.KindCategory, "b-parent")
	require.True(t, ok)

	// Creation order was parent first, child second, with the link intact.
	assert.Equal(t, "Parent", env.fake.categories[0].Name)
	assert.Equal(t, "Child", env.fake.categories[1].Name)
	assert.Equal(t, parentID, env.fake.categories[1].ParentID)
}

func TestRun_CategoryMissingParentReported(t *testing.T) {
	env := setupEnv(t)

	require.NoError(t, env.store.InsertCategory(&entities.StagingCategory{
		NativeID: "c1", Name: "Stray", ParentNativeID: "never-staged",
	}))

	summary := env.run(t)

	assert.Empty(t, env.fake.categories)
	require.Len(t, summary.PermanentlySkipped, 1)
	assert.Contains(t, summary.PermanentlySkipped[0].Reason, "never-staged")
}

func TestRun_SynthesizedIdentitiesAreDeterministic(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{NativeID: "u1", Name: "Alice"}))

	env.run(t)
	require.Len(t, env.fake.users, 1)
	firstEmail := env.fake.users[0].Email
	firstUsername := env.fake.users[0].Username
	assert.Contains(t, firstEmail, "@imported.invalid")
	assert.NotEmpty(t, firstUsername)

	// A rerun over a fresh staging store derives the same identity.
	otherPath := "./test_pipeline_rerun_" + t.Name() + ".db"
	otherStore, err := staging.Open(otherPath)
	require.NoError(t, err)
	defer func() {
		otherStore.Close()
		os.Remove(otherPath)
	}()
	require.NoError(t, otherStore.InsertUser(&entities.StagingUser{NativeID: "u1", Name: "Alice"}))

	otherFake := &fakeTarget{}
	otherLk, err := lookup.Open(otherStore.DB, "phpbb")
	require.NoError(t, err)
	opts := env.opts
	opts.Store = otherStore
	opts.Lookup = otherLk
	opts.Target = otherFake
	imp, err := New(opts)
	require.NoError(t, err)
	_, err = imp.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, otherFake.users, 1)
	assert.Equal(t, firstEmail, otherFake.users[0].Email)
	assert.Equal(t, firstUsername, otherFake.users[0].Username)
}

func TestRun_DuplicateEmailsMapToFirstClaimant(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u1", Name: "Alice", Email: "same@x.com",
	}))
	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u2", Name: "Alice Again", Email: "SAME@x.com",
	}))

	summary := env.run(t)

	assert.Len(t, env.fake.users, 1, "one account for one email")
	assert.Equal(t, 1, summary.Users.Created)
	assert.Equal(t, 1, summary.Users.Skipped)

	// Both native ids resolve to the same target account.
	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	id1, _ := lk.TargetID(entities.KindUser, "u1")
	id2, _ := lk.TargetID(entities.KindUser, "u2")
	assert.Equal(t, id1, id2)
}

func TestRun_DuplicateEmailSurvivesRestart(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u1", Name: "Alice", Email: "same@x.com",
	}))
	env.run(t)
	require.Len(t, env.fake.users, 1)

	// A later extraction adds a second claimant of the same address; the
	// restarted process must rebuild its claims from the persisted mappings
	// instead of creating a colliding account.
	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u2", Name: "Alice Again", Email: "same@x.com",
	}))
	second := env.run(t)

	assert.Len(t, env.fake.users, 1, "one target account per email across restarts")
	assert.Equal(t, 0, second.Users.Created)

	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	id1, ok := lk.TargetID(entities.KindUser, "u1")
	require.True(t, ok)
	id2, ok := lk.TargetID(entities.KindUser, "u2")
	require.True(t, ok)
	assert.Equal(t, id1, id2, "later claimant maps onto the first claimant's account")
}

func TestRun_UsernameCollisionSurvivesRestart(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u1", Name: "Bob", Username: "bob", Email: "bob1@x.com",
	}))
	env.run(t)

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u2", Name: "Bob", Username: "bob", Email: "bob2@x.com",
	}))
	env.run(t)

	require.Len(t, env.fake.users, 2)
	assert.Equal(t, "bob", env.fake.users[0].Username)
	assert.Contains(t, env.fake.users[1].Username, "bob_",
		"claimed username replayed across restarts forces the suffix")
}

func TestRun_UsernameCollisionGetsSuffix(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u1", Name: "Bob", Username: "bob", Email: "bob1@x.com",
	}))
	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u2", Name: "Bob", Username: "bob", Email: "bob2@x.com",
	}))

	env.run(t)

	require.Len(t, env.fake.users, 2)
	assert.Equal(t, "bob", env.fake.users[0].Username)
	assert.NotEqual(t, "bob", env.fake.users[1].Username)
	assert.Contains(t, env.fake.users[1].Username, "bob_")
}

func TestRun_UnresolvedAuthorFallsBackToSystemUser(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "Anonymous", Raw: "body", AuthorNativeID: "unknown",
		PostedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	env.run(t)

	require.Len(t, env.fake.topics, 1)
	assert.Equal(t, int64(-1), env.fake.topics[0].AuthorID)
}

func TestRun_AuthorResolvedByNativeUsername(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u9", Name: "Alice", Username: "alice", Email: "a@x.com",
	}))
	// The export references the author by name, not id.
	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "By name", Raw: "body", AuthorNativeID: "alice",
		PostedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	env.run(t)

	lk, err := lookup.Open(env.store.DB, "phpbb")
	require.NoError(t, err)
	aliceID, _ := lk.TargetID(entities.KindUser, "u9")

	require.Len(t, env.fake.topics, 1)
	assert.Equal(t, aliceID, env.fake.topics[0].AuthorID)
}

func TestRun_UnmappedCategoryFallsBackToDefault(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "Lost", Raw: "body", CategoryNativeID: "nope",
		PostedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	env.run(t)

	require.Len(t, env.fake.topics, 1)
	assert.Equal(t, int64(1), env.fake.topics[0].CategoryID)
}

func TestRun_PruneUnusedUsers(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = true

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{NativeID: "ghost", Name: "Ghost"}))
	require.NoError(t, env.store.InsertUser(&entities.StagingUser{NativeID: "author", Name: "Author"}))
	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "Hi", Raw: "body", AuthorNativeID: "author",
		PostedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	summary := env.run(t)

	assert.Equal(t, int64(1), summary.PrunedUsers)
	require.Len(t, env.fake.users, 1)
	assert.Equal(t, "Author", env.fake.users[0].Name)
}

func TestRun_AttachmentsEmbeddedIntoBody(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	downloader, err := uploads.NewDownloader(t.TempDir(), 1, 0)
	require.NoError(t, err)
	env.opts.Downloader = downloader

	attPath := filepath.Join(t.TempDir(), "diagram.png")
	require.NoError(t, os.WriteFile(attPath, []byte("png-bytes"), 0644))

	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "With file", Raw: "see attachment",
		PostedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, env.store.InsertAttachment(&entities.Attachment{
		OwnerKind: entities.KindTopic, OwnerNativeID: "t1",
		Ref: attPath, Filename: "diagram.png",
	}))

	env.run(t)

	require.Len(t, env.fake.topics, 1)
	assert.Contains(t, env.fake.topics[0].Raw, "see attachment")
	assert.Contains(t, env.fake.topics[0].Raw, "[diagram.png](upload://diagram.png)")
	assert.Equal(t, []string{"diagram.png"}, env.fake.uploads)
}

func TestRun_PostCreateEffects(t *testing.T) {
	env := setupEnv(t)
	env.opts.PruneUnusedUsers = false

	effects := &recordingEffects{}
	env.opts.Effects = effects

	require.NoError(t, env.store.InsertUser(&entities.StagingUser{
		NativeID: "u1", Name: "Alice", Email: "a@x.com", Username: "alice",
		AvatarRef: "https://old.forum/avatar.png",
	}))
	require.NoError(t, env.store.InsertTopic(&entities.StagingTopic{
		NativeID: "t1", Title: "Hi", Raw: "body", AuthorNativeID: "u1",
		ImportURL: "/viewtopic.php?t=1",
		PostedAt:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	env.run(t)

	assert.Equal(t, []string{"alice"}, effects.avatars)
	assert.Equal(t, []string{"/viewtopic.php?t=1"}, effects.permalinks)
}
