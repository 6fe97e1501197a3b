package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/forumport/internal/config"
	"github.com/mrlokans/forumport/internal/entrypoint"
)

// StatsCommand prints staging counts and import progress for one export.
type StatsCommand struct {
	SourceDir string
	SourceTag string
}

// NewStatsCommand creates a new StatsCommand
func NewStatsCommand() *StatsCommand {
	return &StatsCommand{}
}

// ParseFlags parses command line flags
func (cmd *StatsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)

	fs.StringVar(&cmd.SourceTag, "tag", "", "Source tag namespacing the id mappings (default: export directory name)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s stats [options] <export-dir>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Show how many rows are staged and how many are already created on\n")
		fmt.Fprintf(os.Stderr, "the target, per entity kind.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
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

// Run executes the stats command
func (cmd *StatsCommand) Run() error {
	absSourceDir, err := filepath.Abs(cmd.SourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for export directory: %w", err)
	}

	cfg := config.NewConfig()
	return entrypoint.Stats(cfg, absSourceDir, cmd.SourceTag)
}
