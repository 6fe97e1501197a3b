package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/forumport/internal/config"
	"github.com/mrlokans/forumport/internal/entrypoint"
)

// ImportCommand stages a forum export and creates its entities on the target.
type ImportCommand struct {
	SourceDir string
	SourceTag string
	DryRun    bool
	SkipStage bool
}

// NewImportCommand creates a new ImportCommand
func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

// ParseFlags parses command line flags
func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	fs.StringVar(&cmd.SourceTag, "tag", "", "Source tag namespacing the id mappings (default: export directory name)")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Stage the export without creating anything on the target")
	fs.BoolVar(&cmd.SkipStage, "skip-stage", false, "Skip staging and import the existing staging database as-is")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import [options] <export-dir>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import a forum export into the target platform.\n\n")
		fmt.Fprintf(os.Stderr, "This command:\n")
		fmt.Fprintf(os.Stderr, "  1. Stages users.json, categories.json, topics.json and posts.json\n")
		fmt.Fprintf(os.Stderr, "  2. Creates users, then categories, then topics and replies in posting order\n")
		fmt.Fprintf(os.Stderr, "  3. Resolves replies whose parent topic arrived out of order\n\n")
		fmt.Fprintf(os.Stderr, "Interrupted runs resume: re-run the same command and already-created\n")
		fmt.Fprintf(os.Stderr, "entities are skipped via the mapping table.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import ./exports/phpbb\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -dry-run ./exports/phpbb\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -tag oldforum -skip-stage ./exports/phpbb\n", os.Args[0])
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

// Run executes the import command
func (cmd *ImportCommand) Run() error {
	absSourceDir, err := filepath.Abs(cmd.SourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for export directory: %w", err)
	}
	cmd.SourceDir = absSourceDir

	if info, err := os.Stat(cmd.SourceDir); err != nil || !info.IsDir() {
		return fmt.Errorf("export directory %s does not exist", cmd.SourceDir)
	}

	cfg := config.NewConfig()
	return entrypoint.RunImport(cfg, entrypoint.ImportOptions{
		SourceDir: cmd.SourceDir,
		SourceTag: cmd.SourceTag,
		DryRun:    cmd.DryRun,
		SkipStage: cmd.SkipStage,
	})
}
