package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/forumport/internal/config"
	"github.com/mrlokans/forumport/internal/entrypoint"
)

// SyncCommand re-runs the import on a cron schedule while the old forum is
// still taking posts.
type SyncCommand struct {
	SourceDir string
	SourceTag string
}

// NewSyncCommand creates a new SyncCommand
func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

// ParseFlags parses command line flags
func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.StringVar(&cmd.SourceTag, "tag", "", "Source tag namespacing the id mappings (default: export directory name)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options] <export-dir>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run the import repeatedly on the SYNC_SCHEDULE cron schedule.\n")
		fmt.Fprintf(os.Stderr, "Each run restages the export and creates only rows added since the\n")
		fmt.Fprintf(os.Stderr, "previous run. Runs until interrupted.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  SYNC_SCHEDULE=\"*/30 * * * *\" %s sync ./exports/phpbb\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one export directory argument")
	}
	cmd.SourceDir = fs.Arg(0)

	return nil
}

// Run executes the sync command
func (cmd *SyncCommand) Run() error {
	absSourceDir, err := filepath.Abs(cmd.SourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for export directory: %w", err)
	}
	cmd.SourceDir = absSourceDir

	cfg := config.NewConfig()
	return entrypoint.RunSync(cfg, entrypoint.ImportOptions{
		SourceDir: cmd.SourceDir,
		SourceTag: cmd.SourceTag,
	})
}
