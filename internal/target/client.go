// Package target abstracts the discussion platform entities are created in.
// The pipeline only needs the four creation primitives plus file upload and
// permalink registration; everything else about the platform stays behind
// this interface.
package target

import (
	"context"
	"time"
)

// UserFields is the superset of fields accepted when creating a user.
type UserFields struct {
	Name         string
	Email        string
	Username     string
	CreatedAt    time.Time
	Bio          string
	Active       bool
	Admin        bool
	Moderator    bool
	CustomFields map[string]string
}

// CategoryFields describes a category to create. ParentID of zero means a
// top-level category.
type CategoryFields struct {
	Name        string
	Description string
	Position    int
	ParentID    int64
}

// TopicFields describes a new thread, created as its first post.
type TopicFields struct {
	Title      string
	Raw        string
	CategoryID int64
	AuthorID   int64
	CreatedAt  time.Time
	Closed     bool
	Pinned     bool
}

// TopicResult carries both ids a topic creation yields: the first post and
// the thread it opened.
type TopicResult struct {
	PostID  int64
	TopicID int64
}

// PostFields describes a reply within an existing thread.
type PostFields struct {
	TopicID       int64
	AuthorID      int64
	Raw           string
	CreatedAt     time.Time
	ReplyToPostID int64 // zero when the reply is not threaded
}

// Upload is a file the platform has accepted.
type Upload struct {
	ID       int64
	ShortURL string
}

// PermalinkRef is the target of a redirect registered for an old source URL.
// Exactly one field is set.
type PermalinkRef struct {
	TopicID    int64
	PostID     int64
	CategoryID int64
}

// Client is the discussion platform the import writes into. All creation
// calls are synchronous; the pipeline relies on sequential invocation for
// order-sensitive post numbering.
type Client interface {
	CreateUser(ctx context.Context, fields UserFields) (int64, error)
	CreateCategory(ctx context.Context, fields CategoryFields) (int64, error)
	CreateTopic(ctx context.Context, fields TopicFields) (TopicResult, error)
	CreatePost(ctx context.Context, fields PostFields) (int64, error)

	// UploadFile pushes a local file on behalf of a target user.
	UploadFile(ctx context.Context, ownerID int64, path, filename string) (Upload, error)

	// RenderReference returns the markup snippet embedding an upload in a body.
	RenderReference(upload Upload, filename string) string

	// SetAvatar assigns an uploaded image as a user's avatar.
	SetAvatar(ctx context.Context, username string, uploadID int64) error

	// RegisterPermalink redirects an old source URL to an imported entity.
	RegisterPermalink(ctx context.Context, oldURL string, ref PermalinkRef) error
}
