package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		Staging
		Target
		Import
		Uploads
		Tasks
		Sync
		Report
	}

	Staging struct {
		DataDir string // Directory holding per-run staging databases
	}

	Target struct {
		BaseURL           string
		APIKey            string
		APIUsername       string
		Timeout           time.Duration
		RateLimitInterval time.Duration // Minimum spacing between create calls
		SystemUserID      int64         // Fallback author when a user reference cannot be resolved
		DefaultCategoryID int64         // Fallback category for topics with an unresolved category
	}

	Import struct {
		SourceTag        string // Identifies the source system in mappings; defaults from the source dir name
		PageSize         int    // Rows fetched and processed per batch
		ResolverPasses   int    // Bounded retries for deferred parent references
		PruneUnusedUsers bool   // Drop staged users with no topic or post before importing
	}

	Uploads struct {
		Dir        string // Local cache for downloaded avatars and attachments
		MaxRetries int
		RetryDelay time.Duration
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}

	Sync struct {
		Schedule string // Cron format: "0 * * * *" = hourly
	}

	Report struct {
		Dir string // Directory for per-run JSON summaries
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("staging_data_dir", DefaultDataDir)

	v.SetDefault("target_base_url", "")
	v.SetDefault("target_api_key", "")
	v.SetDefault("target_api_username", "system")
	v.SetDefault("target_timeout", "30s")
	v.SetDefault("target_rate_limit_interval", "0s")
	v.SetDefault("target_system_user_id", DefaultSystemUserID)
	v.SetDefault("target_default_category_id", DefaultCategoryID)

	v.SetDefault("import_source_tag", "")
	v.SetDefault("import_page_size", DefaultPageSize)
	v.SetDefault("import_resolver_passes", DefaultResolverPasses)
	v.SetDefault("import_prune_unused_users", true)

	v.SetDefault("uploads_dir", DefaultUploadsDir)
	v.SetDefault("uploads_max_retries", 3)
	v.SetDefault("uploads_retry_delay", "2s")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("sync_schedule", "0 * * * *")

	v.SetDefault("report_dir", DefaultReportDir)

	return &Config{
		Staging: Staging{
			DataDir: v.GetString("STAGING_DATA_DIR"),
		},
		Target: Target{
			BaseURL:           v.GetString("TARGET_BASE_URL"),
			APIKey:            v.GetString("TARGET_API_KEY"),
			APIUsername:       v.GetString("TARGET_API_USERNAME"),
			Timeout:           v.GetDuration("TARGET_TIMEOUT"),
			RateLimitInterval: v.GetDuration("TARGET_RATE_LIMIT_INTERVAL"),
			SystemUserID:      v.GetInt64("TARGET_SYSTEM_USER_ID"),
			DefaultCategoryID: v.GetInt64("TARGET_DEFAULT_CATEGORY_ID"),
		},
		Import: Import{
			SourceTag:        v.GetString("IMPORT_SOURCE_TAG"),
			PageSize:         v.GetInt("IMPORT_PAGE_SIZE"),
			ResolverPasses:   v.GetInt("IMPORT_RESOLVER_PASSES"),
			PruneUnusedUsers: v.GetBool("IMPORT_PRUNE_UNUSED_USERS"),
		},
		Uploads: Uploads{
			Dir:        v.GetString("UPLOADS_DIR"),
			MaxRetries: v.GetInt("UPLOADS_MAX_RETRIES"),
			RetryDelay: v.GetDuration("UPLOADS_RETRY_DELAY"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Sync: Sync{
			Schedule: v.GetString("SYNC_SCHEDULE"),
		},
		Report: Report{
			Dir: v.GetString("REPORT_DIR"),
		},
	}
}
