package entities

import "time"

// Mapping associates a (source tag, kind, native id) identity with the id the
// target platform assigned at creation time. A mapping is written once after
// a successful create and never overwritten; its presence is proof of
// completion, which is what makes reruns idempotent.
type Mapping struct {
	ID        uint   `gorm:"primaryKey"`
	SourceTag string `gorm:"uniqueIndex:idx_mapping_identity,priority:1;size:64"`
	Kind      Kind   `gorm:"uniqueIndex:idx_mapping_identity,priority:2;size:16"`
	NativeID  string `gorm:"uniqueIndex:idx_mapping_identity,priority:3;size:256"`
	TargetID  int64

	// TopicID is set for topic mappings only: TargetID is the first post of
	// the thread, TopicID the thread itself. Replies attach via TopicID.
	TopicID int64

	// NativeUsername is set for user mappings. Some sources reference users
	// by name rather than id, inconsistently within one dataset, so the
	// lookup keeps a secondary index on it.
	NativeUsername string `gorm:"index;size:256"`

	// TargetUsername is the username the target assigned, needed by
	// username-addressed follow-up calls such as avatar selection.
	TargetUsername string `gorm:"size:256"`

	// TargetEmail is the email the account was created with, derived or not.
	// Persisting it lets a rerun rebuild the email claims that dedupe
	// colliding identities, which would otherwise be lost with the process.
	TargetEmail string `gorm:"size:320"`

	CreatedAt time.Time
}
