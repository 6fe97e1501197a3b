package tasks

import (
	"log"

	"github.com/mrlokans/forumport/internal/target"
)

// Effects enqueues post-creation side effects onto the task queue. An
// enqueue failure costs a log line, never the created entity: the mapping is
// already on disk by the time an effect fires.
type Effects struct {
	client *Client
}

// NewEffects creates an effects sink backed by the task queue client.
func NewEffects(client *Client) *Effects {
	return &Effects{client: client}
}

// AvatarImport schedules fetching and assigning a user's avatar.
func (e *Effects) AvatarImport(userID int64, username, avatarRef string) {
	_, err := e.client.Add(AvatarImportTask{
		UserID:    userID,
		Username:  username,
		AvatarRef: avatarRef,
	}).Save()
	if err != nil {
		log.Printf("enqueue avatar import for %s: %v", username, err)
	}
}

// RegisterPermalink schedules a redirect from an old source URL.
func (e *Effects) RegisterPermalink(oldURL string, ref target.PermalinkRef) {
	_, err := e.client.Add(PermalinkTask{
		OldURL:     oldURL,
		TopicID:    ref.TopicID,
		PostID:     ref.PostID,
		CategoryID: ref.CategoryID,
	}).Save()
	if err != nil {
		log.Printf("enqueue permalink for %s: %v", oldURL, err)
	}
}
