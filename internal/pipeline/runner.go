package pipeline

import (
	"context"
	"fmt"
	"log"
)

// Outcome is what processing one staging row produced.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeSkipped
	OutcomeDeferred
	OutcomeFailed
)

// Row is the minimum a batch needs to log a failing row usefully.
type Row interface {
	RowKey() string
	RowSnippet() string
}

// Result tallies per-row outcomes for one phase.
type Result struct {
	Created  int `json:"created"`
	Skipped  int `json:"skipped"`
	Deferred int `json:"deferred"`
	Failed   int `json:"failed"`
}

func (r *Result) add(o Outcome) {
	switch o {
	case OutcomeCreated:
		r.Created++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeDeferred:
		r.Deferred++
	case OutcomeFailed:
		r.Failed++
	}
}

// Total returns the number of rows the phase saw.
func (r Result) Total() int {
	return r.Created + r.Skipped + r.Deferred + r.Failed
}

// Batch drives fixed-size pages of staging rows through a per-row function,
// bounding memory and API-call burst size over arbitrarily large datasets.
//
// Fetch is a stateful closure advancing its own cursor; an empty page ends
// the batch. A fetch error is fatal (the staging store itself is suspect). A
// process error costs only that row. When every row of a page is already
// mapped the page is skipped wholesale; that is purely a resumption shortcut,
// per-row idempotence inside Process stays authoritative.
type Batch[T Row] struct {
	Name     string
	PageSize int
	Total    int64
	Fetch    func(limit int) ([]T, error)
	Mapped   func(T) bool
	Process  func(T) (Outcome, error)
}

// Run processes the batch to completion or the first fatal error.
// Cancellation is honored between pages, never mid-page, so the mapping state
// on disk always reflects whole processed rows.
func (b Batch[T]) Run(ctx context.Context) (Result, error) {
	var res Result
	var processed int64

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := b.Fetch(b.PageSize)
		if err != nil {
			return res, fmt.Errorf("%s: fetch page: %w", b.Name, err)
		}
		if len(page) == 0 {
			break
		}

		if b.Mapped != nil && b.allMapped(page) {
			res.Skipped += len(page)
			processed += int64(len(page))
			b.progress(processed)
			continue
		}

		for _, row := range page {
			if b.Mapped != nil && b.Mapped(row) {
				res.Skipped++
				continue
			}
			outcome, err := b.Process(row)
			if err != nil {
				log.Printf("%s: row %s failed: %v (content: %q)",
					b.Name, row.RowKey(), err, row.RowSnippet())
				res.Failed++
				continue
			}
			res.add(outcome)
		}
		processed += int64(len(page))
		b.progress(processed)
	}

	return res, nil
}

func (b Batch[T]) allMapped(page []T) bool {
	for _, row := range page {
		if !b.Mapped(row) {
			return false
		}
	}
	return true
}

func (b Batch[T]) progress(processed int64) {
	fmt.Printf("%s: %d/%d\n", b.Name, processed, b.Total)
}
