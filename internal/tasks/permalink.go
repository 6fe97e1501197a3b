package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/forumport/internal/target"
)

// PermalinkTask registers a redirect from an old source URL to the imported
// entity, so links scattered around the web keep working after the move.
type PermalinkTask struct {
	OldURL     string `json:"old_url"`
	TopicID    int64  `json:"topic_id,omitempty"`
	PostID     int64  `json:"post_id,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
}

// Config returns the queue configuration for permalink tasks.
func (t PermalinkTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "register_permalink",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PermalinkProcessor creates a processor function for PermalinkTask.
func PermalinkProcessor(client target.Client) backlite.QueueProcessor[PermalinkTask] {
	return func(ctx context.Context, task PermalinkTask) error {
		if client == nil {
			return fmt.Errorf("target client not configured")
		}

		ref := target.PermalinkRef{
			TopicID:    task.TopicID,
			PostID:     task.PostID,
			CategoryID: task.CategoryID,
		}
		if err := client.RegisterPermalink(ctx, task.OldURL, ref); err != nil {
			return fmt.Errorf("register permalink %s: %w", task.OldURL, err)
		}

		log.Printf("[TASK] Registered permalink for %s", task.OldURL)
		return nil
	}
}

// NewPermalinkQueue creates a backlite queue for permalink tasks.
func NewPermalinkQueue(client target.Client) backlite.Queue {
	return backlite.NewQueue(PermalinkProcessor(client))
}
