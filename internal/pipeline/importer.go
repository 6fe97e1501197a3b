// Package pipeline turns staged rows into target-platform entities: batched,
// idempotent, resumable, with deferred resolution of out-of-order parent
// references.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mrlokans/forumport/internal/entities"
	"github.com/mrlokans/forumport/internal/lookup"
	"github.com/mrlokans/forumport/internal/markup"
	"github.com/mrlokans/forumport/internal/staging"
	"github.com/mrlokans/forumport/internal/target"
	"github.com/mrlokans/forumport/internal/uploads"
	"github.com/mrlokans/forumport/internal/utils"
)

// Effects receives post-creation side effects. The importer fires them only
// after the target confirms the entity; each is independently fallible and
// must never propagate failure back into the creation path.
type Effects interface {
	AvatarImport(userID int64, username, avatarRef string)
	RegisterPermalink(oldURL string, ref target.PermalinkRef)
}

// Options wires an Importer. Store, Lookup, Target and SourceTag are
// required; Downloader nil disables attachment and avatar handling; Effects
// nil disables post-create side effects.
type Options struct {
	Store      *staging.Store
	Lookup     *lookup.Lookup
	Target     target.Client
	Normalizer markup.Normalizer
	Downloader *uploads.Downloader
	Effects    Effects

	SourceTag         string
	PageSize          int
	ResolverPasses    int
	SystemUserID      int64
	DefaultCategoryID int64
	PruneUnusedUsers  bool
}

// Importer runs the four creation phases over one staging store.
type Importer struct {
	opts Options

	// claimedEmails and claimedUsernames dedupe derived identities within a
	// run: the first row to claim an email owns the account, later rows with
	// the same derived email map onto it instead of colliding at the target.
	claimedEmails    map[string]string
	claimedUsernames map[string]bool

	// deferredPosts holds the native ids the content pass deferred, so the
	// resolver can tell a retried deferral apart from a retried failure when
	// it reconciles the tallies.
	deferredPosts map[string]bool

	summary *RunSummary
}

func New(opts Options) (*Importer, error) {
	if opts.Store == nil || opts.Lookup == nil || opts.Target == nil {
		return nil, fmt.Errorf("importer: store, lookup and target are required")
	}
	if opts.SourceTag == "" {
		return nil, fmt.Errorf("importer: source tag is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.ResolverPasses <= 0 {
		opts.ResolverPasses = 2
	}
	if opts.Normalizer == nil {
		opts.Normalizer = markup.NewChain()
	}

	imp := &Importer{
		opts:             opts,
		claimedEmails:    make(map[string]string),
		claimedUsernames: make(map[string]bool),
	}

	// Claims from earlier interrupted runs are replayed from the persisted
	// mappings, so a rerun dedupes against accounts that already exist
	// instead of colliding with them at the target.
	for _, m := range opts.Lookup.UserMappings() {
		if m.TargetEmail != "" {
			imp.claimedEmails[m.TargetEmail] = m.NativeID
		}
		if m.TargetUsername != "" {
			imp.claimedUsernames[m.TargetUsername] = true
		}
	}
	return imp, nil
}

// Run executes the full pipeline: users, categories, then topics and replies
// interleaved in creation-time order, followed by the deferred-reference
// resolver. Safe to re-run: rows with an existing mapping are skipped.
func (imp *Importer) Run(ctx context.Context) (*RunSummary, error) {
	imp.summary = &RunSummary{
		SourceTag: imp.opts.SourceTag,
		StartedAt: time.Now(),
	}
	imp.deferredPosts = make(map[string]bool)

	if imp.opts.PruneUnusedUsers {
		pruned, err := imp.opts.Store.DeleteUnusedUsers()
		if err != nil {
			return imp.summary, fmt.Errorf("prune unused users: %w", err)
		}
		imp.summary.PrunedUsers = pruned
	}

	var err error
	if imp.summary.Users, err = imp.importUsers(ctx); err != nil {
		return imp.summary, err
	}
	if imp.summary.Categories, err = imp.importCategories(ctx); err != nil {
		return imp.summary, err
	}

	if err := imp.opts.Store.SortPostsByCreatedAt(); err != nil {
		return imp.summary, err
	}
	if err := imp.importContent(ctx); err != nil {
		return imp.summary, err
	}
	if err := imp.resolveDeferredPosts(ctx); err != nil {
		return imp.summary, err
	}

	imp.summary.FinishedAt = time.Now()
	return imp.summary, nil
}

func (imp *Importer) importUsers(ctx context.Context) (Result, error) {
	total, err := imp.opts.Store.CountUsers()
	if err != nil {
		return Result{}, err
	}

	cursor := ""
	batch := Batch[entities.StagingUser]{
		Name:     "users",
		PageSize: imp.opts.PageSize,
		Total:    total,
		Fetch: func(limit int) ([]entities.StagingUser, error) {
			page, err := imp.opts.Store.FetchUsers(cursor, limit)
			if err == nil && len(page) > 0 {
				cursor = page[len(page)-1].NativeID
			}
			return page, err
		},
		Mapped: func(row entities.StagingUser) bool {
			return imp.opts.Lookup.Has(entities.KindUser, row.NativeID)
		},
		Process: func(row entities.StagingUser) (Outcome, error) {
			return imp.createUser(ctx, row)
		},
	}
	return batch.Run(ctx)
}

func (imp *Importer) createUser(ctx context.Context, row entities.StagingUser) (Outcome, error) {
	if imp.opts.Lookup.Has(entities.KindUser, row.NativeID) {
		return OutcomeSkipped, nil
	}

	email := strings.ToLower(row.Email)
	if email == "" {
		email = utils.SynthesizeEmail(imp.opts.SourceTag, row.Name, row.NativeID)
	}

	// A colliding derived email means both source rows describe the same
	// person as far as the target is concerned; map the later row onto the
	// account the first claimant created.
	if owner, claimed := imp.claimedEmails[email]; claimed && owner != row.NativeID {
		if targetID, ok := imp.opts.Lookup.TargetID(entities.KindUser, owner); ok {
			err := imp.opts.Lookup.Record(entities.Mapping{
				Kind:           entities.KindUser,
				NativeID:       row.NativeID,
				TargetID:       targetID,
				NativeUsername: row.Username,
			})
			if err != nil {
				return OutcomeFailed, err
			}
			return OutcomeSkipped, nil
		}
	}

	username := utils.SlugifyUsername(row.Username)
	if username == "" {
		username = utils.UsernameFromEmail(email)
	}
	if username == "" {
		username = utils.FallbackUsername(imp.opts.SourceTag, row.NativeID)
	}
	if imp.claimedUsernames[username] {
		username = username + "_" + utils.ShortHash(imp.opts.SourceTag+"|"+row.NativeID, 2)
	}

	name := row.Name
	if name == "" {
		name = username
	}

	fields := target.UserFields{
		Name:         name,
		Email:        email,
		Username:     username,
		CreatedAt:    row.RegisteredAt,
		Bio:          row.Bio,
		Active:       row.Active,
		Admin:        row.Admin,
		Moderator:    row.Moderator,
		CustomFields: decodeCustomFields(row.CustomFields),
	}

	targetID, err := imp.opts.Target.CreateUser(ctx, fields)
	if err != nil {
		return OutcomeFailed, err
	}

	nativeUsername := row.Username
	if nativeUsername == "" {
		nativeUsername = row.Name
	}
	err = imp.opts.Lookup.Record(entities.Mapping{
		Kind:           entities.KindUser,
		NativeID:       row.NativeID,
		TargetID:       targetID,
		NativeUsername: nativeUsername,
		TargetUsername: username,
		TargetEmail:    email,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	imp.claimedEmails[email] = row.NativeID
	imp.claimedUsernames[username] = true

	if row.AvatarRef != "" && imp.opts.Effects != nil {
		imp.opts.Effects.AvatarImport(targetID, username, row.AvatarRef)
	}
	return OutcomeCreated, nil
}

// importCategories runs the category batch repeatedly until the deferred set
// stops shrinking: children staged before their parents resolve on a later
// pass, once the parent's mapping exists.
func (imp *Importer) importCategories(ctx context.Context) (Result, error) {
	total, err := imp.opts.Store.CountCategories()
	if err != nil {
		return Result{}, err
	}

	var created int
	var res Result
	for pass := 0; pass <= imp.opts.ResolverPasses; pass++ {
		cursor := ""
		batch := Batch[entities.StagingCategory]{
			Name:     "categories",
			PageSize: imp.opts.PageSize,
			Total:    total,
			Fetch: func(limit int) ([]entities.StagingCategory, error) {
				page, err := imp.opts.Store.FetchCategories(cursor, limit)
				if err == nil && len(page) > 0 {
					cursor = page[len(page)-1].NativeID
				}
				return page, err
			},
			Mapped: func(row entities.StagingCategory) bool {
				return imp.opts.Lookup.Has(entities.KindCategory, row.NativeID)
			},
			Process: func(row entities.StagingCategory) (Outcome, error) {
				return imp.createCategory(ctx, row)
			},
		}

		res, err = batch.Run(ctx)
		if err != nil {
			return res, err
		}
		created += res.Created
		if res.Deferred == 0 {
			break
		}
	}

	// Whatever is still unmapped references a parent that never appeared.
	if res.Deferred > 0 {
		cursor := ""
		for {
			page, err := imp.opts.Store.FetchCategories(cursor, imp.opts.PageSize)
			if err != nil {
				return res, err
			}
			if len(page) == 0 {
				break
			}
			cursor = page[len(page)-1].NativeID
			for _, row := range page {
				if imp.opts.Lookup.Has(entities.KindCategory, row.NativeID) {
					continue
				}
				imp.reportSkipped(entities.KindCategory, row.NativeID,
					fmt.Sprintf("missing parent category %s", row.ParentNativeID))
			}
		}
	}

	// Later passes recount rows created in earlier ones as skipped; fold the
	// passes into one result so every category is tallied exactly once.
	res.Created = created
	res.Skipped = int(total) - res.Created - res.Deferred - res.Failed
	if res.Skipped < 0 {
		res.Skipped = 0
	}
	return res, nil
}

func (imp *Importer) createCategory(ctx context.Context, row entities.StagingCategory) (Outcome, error) {
	if imp.opts.Lookup.Has(entities.KindCategory, row.NativeID) {
		return OutcomeSkipped, nil
	}

	var parentID int64
	if row.ParentNativeID != "" {
		id, ok := imp.opts.Lookup.TargetID(entities.KindCategory, row.ParentNativeID)
		if !ok {
			// Parent must exist before the child; try again next pass.
			return OutcomeDeferred, nil
		}
		parentID = id
	}

	targetID, err := imp.opts.Target.CreateCategory(ctx, target.CategoryFields{
		Name:        row.Name,
		Description: row.Description,
		Position:    row.Position,
		ParentID:    parentID,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	if err := imp.opts.Lookup.RecordID(entities.KindCategory, row.NativeID, targetID); err != nil {
		return OutcomeFailed, err
	}

	if row.ImportURL != "" && imp.opts.Effects != nil {
		imp.opts.Effects.RegisterPermalink(row.ImportURL, target.PermalinkRef{CategoryID: targetID})
	}
	return OutcomeCreated, nil
}

// importContent walks the creation-time order table, creating topics and
// replies in the sequence the target's post numbering expects. Replies whose
// topic is not mapped yet are deferred for the resolver.
func (imp *Importer) importContent(ctx context.Context) error {
	total, err := imp.opts.Store.CountCreationOrder()
	if err != nil {
		return err
	}

	// The interleaved walk mixes both kinds in one batch, so the per-kind
	// tallies the summary wants are kept here; rows the runner skips as
	// already mapped fall out of the totals afterwards.
	var topicRes, postRes Result

	var cursor uint
	batch := Batch[entities.CreationOrder]{
		Name:     "topics+posts",
		PageSize: imp.opts.PageSize,
		Total:    total,
		Fetch: func(limit int) ([]entities.CreationOrder, error) {
			page, err := imp.opts.Store.FetchCreationOrder(cursor, limit)
			if err == nil && len(page) > 0 {
				cursor = page[len(page)-1].Position
			}
			return page, err
		},
		Mapped: func(row entities.CreationOrder) bool {
			return imp.opts.Lookup.Has(row.Kind, row.NativeID)
		},
		Process: func(row entities.CreationOrder) (Outcome, error) {
			switch row.Kind {
			case entities.KindTopic:
				topic, err := imp.opts.Store.GetTopic(row.NativeID)
				if err != nil {
					topicRes.Failed++
					return OutcomeFailed, fmt.Errorf("load staged topic: %w", err)
				}
				outcome, err := imp.createTopic(ctx, topic)
				if err != nil {
					topicRes.Failed++
				} else {
					topicRes.add(outcome)
				}
				return outcome, err
			case entities.KindPost:
				post, err := imp.opts.Store.GetPost(row.NativeID)
				if err != nil {
					postRes.Failed++
					return OutcomeFailed, fmt.Errorf("load staged post: %w", err)
				}
				outcome, err := imp.createPost(ctx, post)
				if err != nil {
					postRes.Failed++
				} else {
					postRes.add(outcome)
					if outcome == OutcomeDeferred {
						imp.deferredPosts[row.NativeID] = true
					}
				}
				return outcome, err
			default:
				return OutcomeFailed, fmt.Errorf("unexpected kind %q in creation order", row.Kind)
			}
		},
	}

	if _, err := batch.Run(ctx); err != nil {
		return err
	}

	topicsTotal, _ := imp.opts.Store.CountTopics()
	postsTotal, _ := imp.opts.Store.CountPosts()

	imp.summary.Topics = topicRes
	imp.summary.Topics.Skipped = int(topicsTotal) - topicRes.Created - topicRes.Deferred - topicRes.Failed
	if imp.summary.Topics.Skipped < 0 {
		imp.summary.Topics.Skipped = 0
	}

	imp.summary.Posts = postRes
	imp.summary.Posts.Skipped = int(postsTotal) - postRes.Created - postRes.Deferred - postRes.Failed
	if imp.summary.Posts.Skipped < 0 {
		imp.summary.Posts.Skipped = 0
	}
	return nil
}

func (imp *Importer) createTopic(ctx context.Context, row *entities.StagingTopic) (Outcome, error) {
	if imp.opts.Lookup.Has(entities.KindTopic, row.NativeID) {
		return OutcomeSkipped, nil
	}

	authorID := imp.resolveAuthor(row.AuthorNativeID)

	categoryID := imp.opts.DefaultCategoryID
	if row.CategoryNativeID != "" {
		if id, ok := imp.opts.Lookup.TargetID(entities.KindCategory, row.CategoryNativeID); ok {
			categoryID = id
		}
	}

	raw := imp.composeBody(ctx, row.Raw, entities.KindTopic, row.NativeID, authorID)

	result, err := imp.opts.Target.CreateTopic(ctx, target.TopicFields{
		Title:      row.Title,
		Raw:        raw,
		CategoryID: categoryID,
		AuthorID:   authorID,
		CreatedAt:  row.PostedAt,
		Closed:     row.Closed,
		Pinned:     row.Pinned,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	err = imp.opts.Lookup.Record(entities.Mapping{
		Kind:     entities.KindTopic,
		NativeID: row.NativeID,
		TargetID: result.PostID,
		TopicID:  result.TopicID,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	if row.ImportURL != "" && imp.opts.Effects != nil {
		imp.opts.Effects.RegisterPermalink(row.ImportURL, target.PermalinkRef{TopicID: result.TopicID})
	}
	return OutcomeCreated, nil
}

func (imp *Importer) createPost(ctx context.Context, row *entities.StagingPost) (Outcome, error) {
	if imp.opts.Lookup.Has(entities.KindPost, row.NativeID) {
		return OutcomeSkipped, nil
	}

	topicID, ok := imp.opts.Lookup.TopicID(row.TopicNativeID)
	if !ok {
		// The topic is required; threaded data routinely arrives before its
		// parent, so the row waits for a resolver pass.
		return OutcomeDeferred, nil
	}

	authorID := imp.resolveAuthor(row.AuthorNativeID)

	// Reply-to is an optional reference: an unresolved quote target degrades
	// to a plain reply in the same thread.
	var replyToID int64
	if row.ReplyToNativeID != "" {
		if id, ok := imp.opts.Lookup.TargetID(entities.KindPost, row.ReplyToNativeID); ok {
			replyToID = id
		}
	}

	raw := imp.composeBody(ctx, row.Raw, entities.KindPost, row.NativeID, authorID)

	targetID, err := imp.opts.Target.CreatePost(ctx, target.PostFields{
		TopicID:       topicID,
		AuthorID:      authorID,
		Raw:           raw,
		CreatedAt:     row.PostedAt,
		ReplyToPostID: replyToID,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	if err := imp.opts.Lookup.RecordID(entities.KindPost, row.NativeID, targetID); err != nil {
		return OutcomeFailed, err
	}

	if row.ImportURL != "" && imp.opts.Effects != nil {
		imp.opts.Effects.RegisterPermalink(row.ImportURL, target.PermalinkRef{PostID: targetID})
	}
	return OutcomeCreated, nil
}

// resolveAuthor maps a native author reference to a target user, trying the
// id mapping first, then the username index (some exports mix both), and
// finally the platform's system identity. Authors are optional references:
// an unresolved author never defers or drops the row.
func (imp *Importer) resolveAuthor(nativeRef string) int64 {
	if nativeRef == "" {
		return imp.opts.SystemUserID
	}
	if id, ok := imp.opts.Lookup.TargetID(entities.KindUser, nativeRef); ok {
		return id
	}
	if id, ok := imp.opts.Lookup.TargetIDForNativeUsername(nativeRef); ok {
		return id
	}
	return imp.opts.SystemUserID
}

// composeBody normalizes the raw markup and embeds uploaded attachments. A
// failed attachment costs a log line and that one embed, never the row.
func (imp *Importer) composeBody(ctx context.Context, raw string, kind entities.Kind, nativeID string, ownerID int64) string {
	body := imp.opts.Normalizer.Normalize(raw, markup.Context{
		SourceTag: imp.opts.SourceTag,
		Kind:      kind,
		NativeID:  nativeID,
	})

	if imp.opts.Downloader == nil {
		return body
	}

	atts, err := imp.opts.Store.Attachments(kind, nativeID)
	if err != nil {
		log.Printf("attachments for %s %s: %v", kind, nativeID, err)
		return body
	}

	for _, att := range atts {
		file, err := imp.opts.Downloader.Fetch(att.Ref)
		if err != nil {
			log.Printf("attachment %s for %s %s: %v", att.Ref, kind, nativeID, err)
			continue
		}
		upload, err := imp.opts.Target.UploadFile(ctx, ownerID, file.Path, file.Filename)
		if err != nil {
			log.Printf("upload %s for %s %s: %v", att.Ref, kind, nativeID, err)
			continue
		}
		body += "\n\n" + imp.opts.Target.RenderReference(upload, file.Filename)
	}
	return body
}

func (imp *Importer) reportSkipped(kind entities.Kind, nativeID, reason string) {
	log.Printf("permanently skipped %s %s: %s", kind, nativeID, reason)
	imp.summary.PermanentlySkipped = append(imp.summary.PermanentlySkipped, SkippedRow{
		Kind:     kind,
		NativeID: nativeID,
		Reason:   reason,
	})
}

func decodeCustomFields(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	fields := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		log.Printf("undecodable custom fields %q: %v", raw, err)
		return nil
	}
	return fields
}
