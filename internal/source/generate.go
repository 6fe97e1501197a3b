package source

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// GenerateOptions controls the size and determinism of a synthetic export.
type GenerateOptions struct {
	Users  int
	Topics int
	Posts  int
	Seed   int64
}

// GenerateCounts reports how many rows of each kind were written.
type GenerateCounts struct {
	Users      int
	Categories int
	Topics     int
	Posts      int
}

// GenerateExport writes a synthetic forum export into dir, for trying the
// importer against a scratch target. The same seed always produces the same
// export.
func GenerateExport(dir string, opts GenerateOptions) (GenerateCounts, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return GenerateCounts{}, fmt.Errorf("failed to create export directory: %w", err)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	base := time.Date(2015, 3, 1, 9, 0, 0, 0, time.UTC)

	users := generateUsers(rng, opts.Users)
	categories := generateCategories()
	topics := generateTopics(rng, base, users, categories, opts.Topics)
	posts := generatePosts(rng, base, users, topics, opts.Posts)

	files := []struct {
		name string
		data any
	}{
		{"users.json", users},
		{"categories.json", categories},
		{"topics.json", topics},
		{"posts.json", posts},
	}
	for _, f := range files {
		if err := writeJSONFile(dir, f.name, f.data); err != nil {
			return GenerateCounts{}, err
		}
	}

	return GenerateCounts{
		Users:      len(users),
		Categories: len(categories),
		Topics:     len(topics),
		Posts:      len(posts),
	}, nil
}

func generateUsers(rng *rand.Rand, count int) []ExportUser {
	names := []string{
		"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi",
		"Ivan", "Judy", "Mallory", "Niaj", "Olivia", "Peggy", "Rupert",
	}

	users := make([]ExportUser, 0, count)
	for i := 0; i < count; i++ {
		name := names[i%len(names)]
		id := fmt.Sprintf("u%d", i+1)

		user := ExportUser{
			ID:           id,
			Name:         fmt.Sprintf("%s %d", name, i+1),
			Username:     fmt.Sprintf("%s%d", name, i+1),
			RegisteredAt: time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i*3).Format(time.RFC3339),
			Active:       true,
		}
		// A share of users has no email, exercising identity synthesis.
		if rng.Intn(10) > 2 {
			user.Email = fmt.Sprintf("%s%d@example.com", name, i+1)
		}
		if rng.Intn(20) == 0 {
			user.Moderator = true
		}
		users = append(users, user)
	}
	return users
}

func generateCategories() []ExportCategory {
	// Child listed before its parent on purpose: a correct importer handles
	// the tree in any input order.
	return []ExportCategory{
		{ID: "c10", Name: "Introductions", ParentID: "c2", Position: 1},
		{ID: "c1", Name: "General Discussion", Position: 1},
		{ID: "c2", Name: "Community", Position: 2},
		{ID: "c3", Name: "Support", Position: 3},
		{ID: "c11", Name: "Bug Reports", ParentID: "c3", Position: 1},
	}
}

func generateTopics(rng *rand.Rand, base time.Time, users []ExportUser, categories []ExportCategory, count int) []ExportTopic {
	titles := []string{
		"Welcome to the forum", "How do I change my signature?", "Site maintenance window",
		"Favorite albums of the year", "Meetup photos", "Search is acting up",
	}

	topics := make([]ExportTopic, 0, count)
	for i := 0; i < count; i++ {
		author := users[rng.Intn(len(users))]
		category := categories[rng.Intn(len(categories))]

		topics = append(topics, ExportTopic{
			ID:         fmt.Sprintf("t%d", i+1),
			Title:      fmt.Sprintf("%s (#%d)", titles[rng.Intn(len(titles))], i+1),
			Raw:        fmt.Sprintf("Opening post of thread %d.\n\nPosted by %s.", i+1, author.Username),
			CategoryID: category.ID,
			AuthorID:   author.ID,
			CreatedAt:  base.Add(time.Duration(i) * 6 * time.Hour).Format(time.RFC3339),
			URL:        fmt.Sprintf("/viewtopic.php?t=%d", i+1),
		})
	}
	return topics
}

func generatePosts(rng *rand.Rand, base time.Time, users []ExportUser, topics []ExportTopic, count int) []ExportPost {
	posts := make([]ExportPost, 0, count)
	for i := 0; i < count; i++ {
		author := users[rng.Intn(len(users))]
		topic := topics[rng.Intn(len(topics))]

		post := ExportPost{
			ID:        fmt.Sprintf("p%d", i+1),
			TopicID:   topic.ID,
			AuthorID:  author.ID,
			Raw:       fmt.Sprintf("Reply %d in thread %s.", i+1, topic.ID),
			CreatedAt: base.Add(time.Duration(i)*time.Hour + 30*time.Minute).Format(time.RFC3339),
			URL:       fmt.Sprintf("/viewtopic.php?p=%d", i+1),
		}
		// Occasionally quote an earlier reply.
		if i > 0 && rng.Intn(5) == 0 {
			post.ReplyToID = fmt.Sprintf("p%d", rng.Intn(i)+1)
		}
		posts = append(posts, post)
	}
	return posts
}

func writeJSONFile(dir, name string, data any) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
