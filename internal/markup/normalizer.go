// Package markup is the seam between the pipeline and source-specific markup
// translation. Vendor cleanup (bbcode, HTML, proprietary smileys) plugs in as
// a Normalizer without the pipeline knowing about any particular dialect.
package markup

import (
	"strings"

	"github.com/mrlokans/forumport/internal/entities"
)

// Context tells a normalizer which row the text belongs to, for translators
// that need to resolve relative links or per-forum quirks.
type Context struct {
	SourceTag string
	Kind      entities.Kind
	NativeID  string
}

// Normalizer converts raw source markup into the target platform's markup.
type Normalizer interface {
	Normalize(raw string, ctx Context) string
}

// Chain applies normalizers in order.
type Chain []Normalizer

func (c Chain) Normalize(raw string, ctx Context) string {
	for _, n := range c {
		raw = n.Normalize(raw, ctx)
	}
	return raw
}

// NewChain builds a chain, always ending with the baseline cleanup.
func NewChain(normalizers ...Normalizer) Chain {
	return append(Chain(normalizers), Baseline{})
}

// Baseline is the format-agnostic cleanup applied to every body: line-ending
// normalization, trailing-whitespace removal and blank-line collapsing.
type Baseline struct{}

func (Baseline) Normalize(raw string, _ Context) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
