// Package report persists the outcome of import runs as JSON files, one per
// run, so results survive the terminal session the import ran in.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{
		Dir: dir,
	}
}

// SaveJSON saves the provided data as JSON. The filename carries the source
// tag and run time for browsing, plus a UUID4 so concurrent runs never clash.
func (w *Writer) SaveJSON(sourceTag string, data any) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", fmt.Errorf("failed to ensure report directory: %w", err)
	}

	runID := uuid.New()
	filename := fmt.Sprintf("run-%s-%s-%s.json",
		sourceTag, time.Now().Format("20060102-150405"), runID.String()[:8])
	path := filepath.Join(w.Dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

// ensureDir creates the report directory if it doesn't exist
func (w *Writer) ensureDir() error {
	if _, err := os.Stat(w.Dir); os.IsNotExist(err) {
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	return nil
}
