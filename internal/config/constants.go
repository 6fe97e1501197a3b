package config

// Default paths and pipeline knobs
const (
	// DefaultDataDir holds the per-run staging databases
	DefaultDataDir = "./data"

	// DefaultUploadsDir caches downloaded avatars and attachments
	DefaultUploadsDir = "./data/uploads"

	// DefaultReportDir receives per-run JSON summaries
	DefaultReportDir = "./data/reports"

	// DefaultPageSize is the number of staging rows processed per batch
	DefaultPageSize = 1000

	// DefaultResolverPasses bounds re-resolution of deferred parent
	// references; cyclic references are data corruption, not a real case
	DefaultResolverPasses = 2

	// DefaultSystemUserID is the discussion platform's system account,
	// used when an author reference cannot be resolved
	DefaultSystemUserID = -1

	// DefaultCategoryID is the platform's uncategorized bucket
	DefaultCategoryID = 1
)
