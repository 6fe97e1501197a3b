// Command generate_export creates a synthetic forum export for trying the
// importer against a scratch target.
// Usage: go run cmd/generate_export/main.go [-out path/to/export] [-users N] [-topics N] [-posts N]
package main

import (
	"flag"
	"log"

	"github.com/mrlokans/forumport/internal/source"
)

const defaultExportPath = "./testdata/export"

func main() {
	outDir := flag.String("out", defaultExportPath, "directory to write the export into")
	userCount := flag.Int("users", 20, "number of users to generate")
	topicCount := flag.Int("topics", 30, "number of topics to generate")
	postCount := flag.Int("posts", 200, "number of replies to generate")
	seed := flag.Int64("seed", 42, "random seed, fixed by default so exports are reproducible")
	flag.Parse()

	log.Printf("Generating export at %s...", *outDir)

	counts, err := source.GenerateExport(*outDir, source.GenerateOptions{
		Users:  *userCount,
		Topics: *topicCount,
		Posts:  *postCount,
		Seed:   *seed,
	})
	if err != nil {
		log.Fatalf("Failed to generate export: %v", err)
	}

	log.Printf("Export generated: %d users, %d categories, %d topics, %d posts",
		counts.Users, counts.Categories, counts.Topics, counts.Posts)
}
