// Package source reads forum exports into the staging store. Each export
// format implements Reader; the staging store is the common representation
// every downstream phase works from.
package source

import (
	"context"

	"github.com/mrlokans/forumport/internal/staging"
)

// StageResult reports what one staging pass loaded.
type StageResult struct {
	Users       int
	Categories  int
	Topics      int
	Posts       int
	Attachments int

	// Errors holds per-row problems that cost a row but not the run.
	Errors []string
}

// Total returns the number of staged rows across all kinds.
func (r StageResult) Total() int {
	return r.Users + r.Categories + r.Topics + r.Posts
}

// Reader loads one export format into the staging store.
//
// Implementations:
//   - JSONExportReader (jsonexport.go) - directory of JSON array files
//
// Adding a new export format:
//  1. Create a new file (e.g., sqldump.go)
//  2. Define your format-specific row structs
//  3. Implement Reader, staging rows through the store's Insert methods
type Reader interface {
	// Stage loads the export into store. Row-level problems are collected in
	// the result; only an unreadable export fails the call.
	Stage(ctx context.Context, store *staging.Store) (StageResult, error)
}
