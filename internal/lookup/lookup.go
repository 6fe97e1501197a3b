// Package lookup is the single source of truth translating native ids into
// target-side ids across entity kinds. Mappings are persisted in the staging
// database and cached in memory; once recorded they are never overwritten, so
// an existing mapping is proof that the entity was created and reruns skip it.
package lookup

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/forumport/internal/entities"
)

type key struct {
	kind     entities.Kind
	nativeID string
}

// Lookup caches the mapping table for one source system.
type Lookup struct {
	db        *gorm.DB
	sourceTag string

	byNative   map[key]entities.Mapping
	byUsername map[string]entities.Mapping
}

// Open loads all existing mappings for the source tag into memory. The cache
// is single-writer (the importing process) so no locking is needed.
func Open(db *gorm.DB, sourceTag string) (*Lookup, error) {
	if sourceTag == "" {
		return nil, fmt.Errorf("lookup: source tag is required")
	}

	l := &Lookup{
		db:         db,
		sourceTag:  sourceTag,
		byNative:   make(map[key]entities.Mapping),
		byUsername: make(map[string]entities.Mapping),
	}

	var rows []entities.Mapping
	if err := db.Where("source_tag = ?", sourceTag).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}
	for _, m := range rows {
		l.cache(m)
	}
	return l, nil
}

func (l *Lookup) cache(m entities.Mapping) {
	l.byNative[key{m.Kind, m.NativeID}] = m
	if m.Kind == entities.KindUser && m.NativeUsername != "" {
		l.byUsername[m.NativeUsername] = m
	}
}

// TargetID returns the target-side id recorded for a native id, if any.
func (l *Lookup) TargetID(kind entities.Kind, nativeID string) (int64, bool) {
	m, ok := l.byNative[key{kind, nativeID}]
	if !ok {
		return 0, false
	}
	return m.TargetID, true
}

// TopicID returns the target-side thread id for a native topic id. For
// topics TargetID is the first post; replies attach to the thread.
func (l *Lookup) TopicID(nativeID string) (int64, bool) {
	m, ok := l.byNative[key{entities.KindTopic, nativeID}]
	if !ok {
		return 0, false
	}
	return m.TopicID, true
}

// TargetIDForNativeUsername resolves a source-side username to a target user
// id. Some exports reference users by name instead of id, inconsistently
// within the same dataset.
func (l *Lookup) TargetIDForNativeUsername(name string) (int64, bool) {
	m, ok := l.byUsername[name]
	if !ok {
		return 0, false
	}
	return m.TargetID, true
}

// TargetUsername returns the username the target platform assigned to a
// native user id, needed by username-addressed follow-up calls.
func (l *Lookup) TargetUsername(nativeID string) (string, bool) {
	m, ok := l.byNative[key{entities.KindUser, nativeID}]
	if !ok || m.TargetUsername == "" {
		return "", false
	}
	return m.TargetUsername, true
}

// UserMappings returns all cached user mappings. The importer replays them to
// rebuild its claimed-identity state across process restarts.
func (l *Lookup) UserMappings() []entities.Mapping {
	var rows []entities.Mapping
	for k, m := range l.byNative {
		if k.kind == entities.KindUser {
			rows = append(rows, m)
		}
	}
	return rows
}

// Has reports whether a mapping exists.
func (l *Lookup) Has(kind entities.Kind, nativeID string) bool {
	_, ok := l.byNative[key{kind, nativeID}]
	return ok
}

// Record persists a mapping. Recording the same identity twice is a no-op:
// the first write wins and existing mappings are never overwritten, which
// guarantees at-most-once creation per native id across interrupted runs.
func (l *Lookup) Record(m entities.Mapping) error {
	m.SourceTag = l.sourceTag
	if _, ok := l.byNative[key{m.Kind, m.NativeID}]; ok {
		return nil
	}
	if err := l.db.Create(&m).Error; err != nil {
		return fmt.Errorf("record mapping %s/%s: %w", m.Kind, m.NativeID, err)
	}
	l.cache(m)
	return nil
}

// RecordID is the common case: one entity, one target id.
func (l *Lookup) RecordID(kind entities.Kind, nativeID string, targetID int64) error {
	return l.Record(entities.Mapping{Kind: kind, NativeID: nativeID, TargetID: targetID})
}

// Count returns how many mappings of a kind exist for this source.
func (l *Lookup) Count(kind entities.Kind) int {
	n := 0
	for k := range l.byNative {
		if k.kind == kind {
			n++
		}
	}
	return n
}
