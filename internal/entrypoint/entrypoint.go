// Package entrypoint wires the staging store, target client, task queue and
// pipeline together for one import run. CLI commands stay thin and call here.
package entrypoint

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mrlokans/forumport/internal/config"
	"github.com/mrlokans/forumport/internal/entities"
	"github.com/mrlokans/forumport/internal/lookup"
	"github.com/mrlokans/forumport/internal/pipeline"
	"github.com/mrlokans/forumport/internal/report"
	"github.com/mrlokans/forumport/internal/scheduler"
	"github.com/mrlokans/forumport/internal/source"
	"github.com/mrlokans/forumport/internal/staging"
	"github.com/mrlokans/forumport/internal/target"
	"github.com/mrlokans/forumport/internal/tasks"
	"github.com/mrlokans/forumport/internal/uploads"
)

// ImportOptions carries the per-invocation knobs on top of the environment
// configuration.
type ImportOptions struct {
	SourceDir string
	SourceTag string // overrides config and the source-dir default
	DryRun    bool   // stage the export, create nothing
	SkipStage bool   // reuse the existing staging database as-is
}

// RunImport stages the export and runs the full pipeline against the target.
// Interrupts are honored between batches; a rerun of the same command picks
// up where the interrupted run stopped.
func RunImport(cfg *config.Config, opts ImportOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runImport(ctx, cfg, opts)
}

func runImport(ctx context.Context, cfg *config.Config, opts ImportOptions) error {
	sourceTag := resolveSourceTag(cfg, opts)

	store, err := staging.OpenForSource(cfg.Staging.DataDir, opts.SourceDir)
	if err != nil {
		return fmt.Errorf("open staging store: %w", err)
	}
	defer store.Close()

	log.Printf("Staging database: %s", store.Path())

	if !opts.SkipStage {
		reader := source.NewJSONExportReader(opts.SourceDir)
		res, err := reader.Stage(ctx, store)
		if err != nil {
			return fmt.Errorf("stage export: %w", err)
		}
		log.Printf("Staged %d rows (%d users, %d categories, %d topics, %d posts, %d attachments)",
			res.Total(), res.Users, res.Categories, res.Topics, res.Posts, res.Attachments)
		for _, msg := range res.Errors {
			log.Printf("stage: %s", msg)
		}
	}

	if opts.DryRun {
		log.Printf("Dry run: staging complete, skipping creation")
		return nil
	}

	if cfg.Target.BaseURL == "" {
		return fmt.Errorf("target base URL is not set (TARGET_BASE_URL)")
	}

	lk, err := lookup.Open(store.DB, sourceTag)
	if err != nil {
		return fmt.Errorf("open lookup table: %w", err)
	}

	client := target.NewDiscourseClient(
		cfg.Target.BaseURL,
		cfg.Target.APIKey,
		cfg.Target.APIUsername,
		cfg.Target.Timeout,
		cfg.Target.RateLimitInterval,
	)

	downloader, err := uploads.NewDownloader(cfg.Uploads.Dir, cfg.Uploads.MaxRetries, cfg.Uploads.RetryDelay)
	if err != nil {
		return fmt.Errorf("init downloader: %w", err)
	}

	// Side effects (avatars, permalinks) run on the task queue so creation
	// keeps its strict sequential order while the extras retry in background.
	var effects pipeline.Effects
	var taskClient *tasks.Client
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(store.Path(), tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		})
		if err != nil {
			return fmt.Errorf("init task queue: %w", err)
		}
		defer taskClient.Close()

		taskClient.Register(
			tasks.NewAvatarImportQueue(downloader, client),
			tasks.NewPermalinkQueue(client),
		)
		go taskClient.Start(ctx)
		effects = tasks.NewEffects(taskClient)
	}

	imp, err := pipeline.New(pipeline.Options{
		Store:             store,
		Lookup:            lk,
		Target:            client,
		Downloader:        downloader,
		Effects:           effects,
		SourceTag:         sourceTag,
		PageSize:          cfg.Import.PageSize,
		ResolverPasses:    cfg.Import.ResolverPasses,
		SystemUserID:      cfg.Target.SystemUserID,
		DefaultCategoryID: cfg.Target.DefaultCategoryID,
		PruneUnusedUsers:  cfg.Import.PruneUnusedUsers,
	})
	if err != nil {
		return err
	}

	summary, runErr := imp.Run(ctx)

	// Drain queued side effects before reporting, even on an interrupted run.
	if taskClient != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		taskClient.Stop(stopCtx)
		cancel()
	}

	if summary != nil {
		summary.Print()
		writer := report.NewWriter(cfg.Report.Dir)
		if path, err := writer.SaveJSON(sourceTag, summary); err != nil {
			log.Printf("write run report: %v", err)
		} else {
			log.Printf("Run report: %s", path)
		}
	}

	return runErr
}

// RunSync runs the import on the configured cron schedule until interrupted.
func RunSync(cfg *config.Config, opts ImportOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewSyncScheduler(cfg.Sync.Schedule, func(ctx context.Context) error {
		return runImport(ctx, cfg, opts)
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}
	if !sched.IsRunning() {
		return fmt.Errorf("sync schedule is not configured (SYNC_SCHEDULE)")
	}

	if next := sched.GetNextRunTime(); next != nil {
		log.Printf("Next sync run: %s", next.Format(time.RFC3339))
	}

	<-ctx.Done()
	sched.Stop()
	return nil
}

// PruneUsers deletes staged users that authored nothing, without importing.
func PruneUsers(cfg *config.Config, sourceDir string) error {
	store, err := staging.OpenForSource(cfg.Staging.DataDir, sourceDir)
	if err != nil {
		return fmt.Errorf("open staging store: %w", err)
	}
	defer store.Close()

	pruned, err := store.DeleteUnusedUsers()
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d staged users with no topics or posts\n", pruned)
	return nil
}

// Stats prints staging row counts and mapping progress for one source.
func Stats(cfg *config.Config, sourceDir, sourceTag string) error {
	store, err := staging.OpenForSource(cfg.Staging.DataDir, sourceDir)
	if err != nil {
		return fmt.Errorf("open staging store: %w", err)
	}
	defer store.Close()

	tag := sourceTag
	if tag == "" {
		tag = resolveSourceTag(cfg, ImportOptions{SourceDir: sourceDir})
	}
	lk, err := lookup.Open(store.DB, tag)
	if err != nil {
		return fmt.Errorf("open lookup table: %w", err)
	}

	users, _ := store.CountUsers()
	categories, _ := store.CountCategories()
	topics, _ := store.CountTopics()
	posts, _ := store.CountPosts()

	fmt.Printf("Staging database: %s (source tag %q)\n", store.Path(), tag)
	printStat("users", users, lk.Count(entities.KindUser))
	printStat("categories", categories, lk.Count(entities.KindCategory))
	printStat("topics", topics, lk.Count(entities.KindTopic))
	printStat("posts", posts, lk.Count(entities.KindPost))
	return nil
}

func printStat(name string, staged int64, mapped int) {
	fmt.Printf("  %-10s staged %d, created %d, remaining %d\n",
		name, staged, mapped, staged-int64(mapped))
}

// resolveSourceTag picks the mapping namespace: explicit flag, then the
// environment, then the export directory's base name.
func resolveSourceTag(cfg *config.Config, opts ImportOptions) string {
	if opts.SourceTag != "" {
		return opts.SourceTag
	}
	if cfg.Import.SourceTag != "" {
		return cfg.Import.SourceTag
	}
	base := filepath.Base(strings.TrimRight(opts.SourceDir, string(os.PathSeparator)))
	if base == "." || base == "" {
		return "forum"
	}
	return base
}
