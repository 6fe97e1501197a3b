package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/forumport/internal/config"
	"github.com/mrlokans/forumport/internal/entrypoint"
)

// PruneUsersCommand deletes staged users that never posted anything.
type PruneUsersCommand struct {
	SourceDir string
}

// NewPruneUsersCommand creates a new PruneUsersCommand
func NewPruneUsersCommand() *PruneUsersCommand {
	return &PruneUsersCommand{}
}

// ParseFlags parses command line flags
func (cmd *PruneUsersCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("prune-users", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s prune-users <export-dir>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Delete staged users with no topics or posts, so abandoned signups\n")
		fmt.Fprintf(os.Stderr, "never reach the target. The import does this automatically when\n")
		fmt.Fprintf(os.Stderr, "IMPORT_PRUNE_UNUSED_USERS is enabled.\n\n")
		fs.PrintDefaults()
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

// Run executes the prune command
func (cmd *PruneUsersCommand) Run() error {
	absSourceDir, err := filepath.Abs(cmd.SourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for export directory: %w", err)
	}

	cfg := config.NewConfig()
	return entrypoint.PruneUsers(cfg, absSourceDir)
}
