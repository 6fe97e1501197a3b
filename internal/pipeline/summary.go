package pipeline

import (
	"fmt"
	"time"

	"github.com/mrlokans/forumport/internal/entities"
)

// SkippedRow is a staging row the pipeline gave up on, with enough context
// for the operator to fix the source data.
type SkippedRow struct {
	Kind     entities.Kind `json:"kind"`
	NativeID string        `json:"native_id"`
	Reason   string        `json:"reason"`
}

// RunSummary is the operator-facing outcome of one import run.
type RunSummary struct {
	SourceTag   string    `json:"source_tag"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	PrunedUsers int64     `json:"pruned_users"`

	Users      Result `json:"users"`
	Categories Result `json:"categories"`
	Topics     Result `json:"topics"`
	Posts      Result `json:"posts"`

	PermanentlySkipped []SkippedRow `json:"permanently_skipped,omitempty"`
}

// Print writes the per-phase counts to stdout.
func (s *RunSummary) Print() {
	fmt.Printf("\nImport summary for %q (%s):\n", s.SourceTag, s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	printPhase("users", s.Users)
	printPhase("categories", s.Categories)
	printPhase("topics", s.Topics)
	printPhase("posts", s.Posts)
	if s.PrunedUsers > 0 {
		fmt.Printf("  pruned %d staged users with no content\n", s.PrunedUsers)
	}
	for _, row := range s.PermanentlySkipped {
		fmt.Printf("  skipped %s %s: %s\n", row.Kind, row.NativeID, row.Reason)
	}
}

func printPhase(name string, r Result) {
	fmt.Printf("  %-10s created %d, skipped %d, deferred %d, failed %d\n",
		name, r.Created, r.Skipped, r.Deferred, r.Failed)
}
