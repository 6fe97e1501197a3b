package entities

import (
	"time"
)

// Kind identifies which entity family a native id belongs to. Mappings and
// identity checks are namespaced by kind.
type Kind string

const (
	KindUser     Kind = "user"
	KindCategory Kind = "category"
	KindTopic    Kind = "topic"
	KindPost     Kind = "post"
)

// StagingUser is a normalized user row keyed by the source system's id.
// Email and Username may be empty; the pipeline synthesizes them
// deterministically before creation.
type StagingUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	NativeID     string    `gorm:"uniqueIndex;size:256" json:"native_id"`
	Email        string    `gorm:"size:255" json:"email,omitempty"`
	Name         string    `gorm:"size:256" json:"name"`
	Username     string    `gorm:"size:256" json:"username,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
	Bio          string    `gorm:"type:text" json:"bio,omitempty"`
	AvatarRef    string    `gorm:"size:2048" json:"avatar_ref,omitempty"`
	Active       bool      `gorm:"default:true" json:"active"`
	Admin        bool      `json:"admin,omitempty"`
	Moderator    bool      `json:"moderator,omitempty"`

	// CustomFields holds source-specific key/value pairs as a JSON object.
	CustomFields string `gorm:"type:text" json:"custom_fields,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// StagingCategory is a normalized category row. Categories form a tree via
// ParentNativeID; a child whose parent is not yet created is deferred.
type StagingCategory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	NativeID       string    `gorm:"uniqueIndex;size:256" json:"native_id"`
	Name           string    `gorm:"size:256" json:"name"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Position       int       `json:"position,omitempty"`
	ParentNativeID string    `gorm:"index;size:256" json:"parent_native_id,omitempty"`
	ImportURL      string    `gorm:"size:2048" json:"import_url,omitempty"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// StagingTopic is the first post of a thread.
type StagingTopic struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	NativeID         string    `gorm:"uniqueIndex;size:256" json:"native_id"`
	Title            string    `gorm:"size:512" json:"title"`
	Raw              string    `gorm:"type:text" json:"raw"`
	CategoryNativeID string    `gorm:"index;size:256" json:"category_native_id,omitempty"`
	AuthorNativeID   string    `gorm:"index;size:256" json:"author_native_id,omitempty"`
	PostedAt         time.Time `json:"posted_at,omitempty"`
	Closed           bool      `json:"closed,omitempty"`
	Pinned           bool      `json:"pinned,omitempty"`
	ImportURL        string    `gorm:"size:2048" json:"import_url,omitempty"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// StagingPost is a reply within a thread. TopicNativeID is required; a reply
// whose topic has no mapping yet is deferred, not dropped.
type StagingPost struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	NativeID        string    `gorm:"uniqueIndex;size:256" json:"native_id"`
	TopicNativeID   string    `gorm:"index;size:256" json:"topic_native_id"`
	AuthorNativeID  string    `gorm:"index;size:256" json:"author_native_id,omitempty"`
	Raw             string    `gorm:"type:text" json:"raw"`
	PostedAt        time.Time `json:"posted_at,omitempty"`
	ReplyToNativeID string    `gorm:"size:256" json:"reply_to_native_id,omitempty"`
	ImportURL       string    `gorm:"size:2048" json:"import_url,omitempty"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

// Attachment references a file belonging to a staged topic or post. Ref is a
// local path or URL; at creation time it is uploaded and embedded into the
// body text.
type Attachment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OwnerKind     Kind      `gorm:"index:idx_attachment_owner,priority:1;size:16" json:"owner_kind"`
	OwnerNativeID string    `gorm:"index:idx_attachment_owner,priority:2;size:256" json:"owner_native_id"`
	Ref           string    `gorm:"size:2048" json:"ref"`
	Filename      string    `gorm:"size:512" json:"filename"`
	CreatedAt     time.Time `json:"-"`
}

// Identity pins a native id to the kind it was first staged under. Staging
// the same native id under a second kind is an ambiguous-identity error.
type Identity struct {
	ID       uint   `gorm:"primaryKey"`
	NativeID string `gorm:"uniqueIndex;size:256"`
	Kind     Kind   `gorm:"size:16"`
}

// CreationOrder is a materialized side table interleaving topics and posts in
// global creation-time order. Post numbering on the target side is
// order-sensitive, so topics and replies are created by walking this table.
type CreationOrder struct {
	Position uint      `gorm:"primaryKey;autoIncrement" json:"position"`
	Kind     Kind      `gorm:"size:16" json:"kind"`
	NativeID string    `gorm:"index;size:256" json:"native_id"`
	PostedAt time.Time `json:"posted_at"`
}

// RowKey returns the native id used in batch logging.
func (u StagingUser) RowKey() string     { return u.NativeID }
func (c StagingCategory) RowKey() string { return c.NativeID }
func (t StagingTopic) RowKey() string    { return t.NativeID }
func (p StagingPost) RowKey() string     { return p.NativeID }
func (o CreationOrder) RowKey() string   { return o.NativeID }

// RowSnippet returns a short piece of row content for diagnostics.
func (u StagingUser) RowSnippet() string     { return snippet(u.Name) }
func (c StagingCategory) RowSnippet() string { return snippet(c.Name) }
func (t StagingTopic) RowSnippet() string    { return snippet(t.Title) }
func (p StagingPost) RowSnippet() string     { return snippet(p.Raw) }
func (o CreationOrder) RowSnippet() string   { return string(o.Kind) }

func snippet(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
