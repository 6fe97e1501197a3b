package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/forumport/internal/target"
	"github.com/mrlokans/forumport/internal/uploads"
)

// AvatarImportTask fetches a user's old avatar and assigns it to the created
// account. Avatars are cosmetic, so they run off the critical path: the user
// mapping is already recorded before this task is enqueued.
type AvatarImportTask struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatar_ref"`
}

// Config returns the queue configuration for avatar import tasks.
func (t AvatarImportTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "avatar_import",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// AvatarImportProcessor creates a processor function for AvatarImportTask.
func AvatarImportProcessor(downloader *uploads.Downloader, client target.Client) backlite.QueueProcessor[AvatarImportTask] {
	return func(ctx context.Context, task AvatarImportTask) error {
		if downloader == nil || client == nil {
			return fmt.Errorf("avatar import not configured")
		}

		file, err := downloader.Fetch(task.AvatarRef)
		if err != nil {
			return fmt.Errorf("fetch avatar %s: %w", task.AvatarRef, err)
		}

		upload, err := client.UploadFile(ctx, task.UserID, file.Path, file.Filename)
		if err != nil {
			return fmt.Errorf("upload avatar for %s: %w", task.Username, err)
		}

		if err := client.SetAvatar(ctx, task.Username, upload.ID); err != nil {
			return fmt.Errorf("set avatar for %s: %w", task.Username, err)
		}

		log.Printf("[TASK] Imported avatar for %s from %s", task.Username, task.AvatarRef)
		return nil
	}
}

// NewAvatarImportQueue creates a backlite queue for avatar import tasks.
func NewAvatarImportQueue(downloader *uploads.Downloader, client target.Client) backlite.Queue {
	return backlite.NewQueue(AvatarImportProcessor(downloader, client))
}
