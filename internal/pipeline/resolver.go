package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/forumport/internal/entities"
)

// resolveDeferredPosts re-scans replies still lacking a mapping after the
// content pass and retries them against the now-more-complete lookup. Passes
// repeat until one makes no progress or the bound is hit; the bound exists
// because a reference chain that needs more passes than the dataset has
// honest depth is data corruption, not a legitimate case. Whatever survives
// the bound is reported permanently skipped, never silently dropped.
func (imp *Importer) resolveDeferredPosts(ctx context.Context) error {
	for pass := 1; pass <= imp.opts.ResolverPasses; pass++ {
		remaining, progressed, err := imp.resolverPass(ctx, pass)
		if err != nil {
			return err
		}
		if remaining == 0 || !progressed {
			break
		}
	}
	return imp.reportUnresolvedPosts()
}

func (imp *Importer) resolverPass(ctx context.Context, pass int) (remaining int, progressed bool, err error) {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return remaining, progressed, err
		}

		page, err := imp.opts.Store.FetchPosts(cursor, imp.opts.PageSize)
		if err != nil {
			return remaining, progressed, fmt.Errorf("resolver pass %d: fetch page: %w", pass, err)
		}
		if len(page) == 0 {
			return remaining, progressed, nil
		}
		cursor = page[len(page)-1].NativeID

		for i := range page {
			row := page[i]
			if imp.opts.Lookup.Has(entities.KindPost, row.NativeID) {
				continue
			}

			// A row without a mapping here was either deferred or failed in
			// an earlier pass; the earlier tally moves to the new outcome so
			// every row is counted exactly once.
			wasDeferred := imp.deferredPosts[row.NativeID]

			outcome, err := imp.createPost(ctx, &row)
			if err != nil {
				log.Printf("resolver pass %d: row %s failed: %v (content: %q)",
					pass, row.RowKey(), err, row.RowSnippet())
				if wasDeferred {
					imp.summary.Posts.Failed++
					imp.summary.Posts.Deferred--
					delete(imp.deferredPosts, row.NativeID)
				}
				continue
			}
			switch outcome {
			case OutcomeCreated:
				progressed = true
				imp.summary.Posts.Created++
				if wasDeferred {
					imp.summary.Posts.Deferred--
					delete(imp.deferredPosts, row.NativeID)
				} else {
					imp.summary.Posts.Failed--
				}
			case OutcomeDeferred:
				remaining++
			}
		}
	}
}

// reportUnresolvedPosts records every reply whose parent topic never showed
// up, with the missing native id so the operator can chase it in the source.
func (imp *Importer) reportUnresolvedPosts() error {
	cursor := ""
	unresolved := 0
	for {
		page, err := imp.opts.Store.FetchPosts(cursor, imp.opts.PageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		cursor = page[len(page)-1].NativeID

		for _, row := range page {
			if imp.opts.Lookup.Has(entities.KindPost, row.NativeID) {
				continue
			}
			if _, ok := imp.opts.Lookup.TopicID(row.TopicNativeID); ok {
				// Mapped parent but no mapping of its own: the row failed at
				// creation and was already counted and logged.
				continue
			}
			unresolved++
			imp.reportSkipped(entities.KindPost, row.NativeID,
				fmt.Sprintf("missing parent topic %s", row.TopicNativeID))
		}
	}

	imp.summary.Posts.Deferred = unresolved
	return nil
}
