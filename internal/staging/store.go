// Package staging implements the durable holding area between extraction and
// entity creation. Rows from a source export are normalized into SQLite,
// keyed by the source system's native ids, so the slow creation phase can be
// interrupted and resumed without re-reading the source.
package staging

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/forumport/internal/entities"
	"github.com/mrlokans/forumport/internal/utils"
)

// ErrAmbiguousIdentity signals that a native id was staged under two entity
// kinds. Unlike a malformed row, which costs only that row, this one poisons
// the whole import: callers must abort the staging pass.
var ErrAmbiguousIdentity = errors.New("ambiguous identity")

// Store wraps the per-run staging database.
type Store struct {
	DB   *gorm.DB
	path string
}

// PathForSource derives the staging database path deterministically from the
// source location, so re-invoking the importer against the same input resumes
// the same run instead of starting a fresh one.
func PathForSource(dataDir, sourcePath string) string {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	name := fmt.Sprintf("staging-%s-%s.db", filepath.Base(abs), utils.ShortHash(abs, 6))
	return filepath.Join(dataDir, name)
}

// OpenForSource opens (or creates) the staging database for a source path.
func OpenForSource(dataDir, sourcePath string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return Open(PathForSource(dataDir, sourcePath))
}

// Open opens a staging database at an explicit path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open staging database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.StagingUser{},
		&entities.StagingCategory{},
		&entities.StagingTopic{},
		&entities.StagingPost{},
		&entities.Attachment{},
		&entities.Identity{},
		&entities.CreationOrder{},
		&entities.Mapping{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate staging database: %w", err)
	}

	log.Printf("Staging database ready at %s", path)

	return &Store{DB: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// claimIdentity records which kind a native id was first staged under.
// Staging the same native id under a different kind later is an ambiguous
// identity and fatal: the source tables reuse an id range and the importer
// must not guess which row it refers to.
func (s *Store) claimIdentity(kind entities.Kind, nativeID string) error {
	var existing entities.Identity
	err := s.DB.Where("native_id = ?", nativeID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return s.DB.Create(&entities.Identity{NativeID: nativeID, Kind: kind}).Error
	}
	if err != nil {
		return err
	}
	if existing.Kind != kind {
		return fmt.Errorf("%w: native id %q staged as %s and %s", ErrAmbiguousIdentity, nativeID, existing.Kind, kind)
	}
	return nil
}

// InsertUser upserts a staged user by native id; last write wins on reruns.
func (s *Store) InsertUser(row *entities.StagingUser) error {
	if row.NativeID == "" {
		return fmt.Errorf("staging user: native id is required")
	}
	if row.Name == "" && row.Username == "" && row.Email == "" {
		return fmt.Errorf("staging user %s: at least one of name, username or email is required", row.NativeID)
	}
	if err := s.claimIdentity(entities.KindUser, row.NativeID); err != nil {
		return err
	}

	var existing entities.StagingUser
	err := s.DB.Where("native_id = ?", row.NativeID).First(&existing).Error
	if err == nil {
		row.ID = existing.ID
	} else if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.DB.Save(row).Error
}

// InsertCategory upserts a staged category by native id.
func (s *Store) InsertCategory(row *entities.StagingCategory) error {
	if row.NativeID == "" {
		return fmt.Errorf("staging category: native id is required")
	}
	if row.Name == "" {
		return fmt.Errorf("staging category %s: name is required", row.NativeID)
	}
	if err := s.claimIdentity(entities.KindCategory, row.NativeID); err != nil {
		return err
	}

	var existing entities.StagingCategory
	err := s.DB.Where("native_id = ?", row.NativeID).First(&existing).Error
	if err == nil {
		row.ID = existing.ID
	} else if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.DB.Save(row).Error
}

// InsertTopic upserts a staged topic by native id.
func (s *Store) InsertTopic(row *entities.StagingTopic) error {
	if row.NativeID == "" {
		return fmt.Errorf("staging topic: native id is required")
	}
	if row.Title == "" {
		return fmt.Errorf("staging topic %s: title is required", row.NativeID)
	}
	if row.Raw == "" {
		return fmt.Errorf("staging topic %s: raw body is required", row.NativeID)
	}
	if err := s.claimIdentity(entities.KindTopic, row.NativeID); err != nil {
		return err
	}

	var existing entities.StagingTopic
	err := s.DB.Where("native_id = ?", row.NativeID).First(&existing).Error
	if err == nil {
		row.ID = existing.ID
	} else if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.DB.Save(row).Error
}

// InsertPost upserts a staged reply by native id.
func (s *Store) InsertPost(row *entities.StagingPost) error {
	if row.NativeID == "" {
		return fmt.Errorf("staging post: native id is required")
	}
	if row.TopicNativeID == "" {
		return fmt.Errorf("staging post %s: topic native id is required", row.NativeID)
	}
	if row.Raw == "" {
		return fmt.Errorf("staging post %s: raw body is required", row.NativeID)
	}
	if err := s.claimIdentity(entities.KindPost, row.NativeID); err != nil {
		return err
	}

	var existing entities.StagingPost
	err := s.DB.Where("native_id = ?", row.NativeID).First(&existing).Error
	if err == nil {
		row.ID = existing.ID
	} else if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.DB.Save(row).Error
}

// InsertAttachment records an attachment reference for a staged topic or
// post. Re-staging the same (owner, ref) pair is a no-op.
func (s *Store) InsertAttachment(row *entities.Attachment) error {
	if row.OwnerNativeID == "" || row.Ref == "" {
		return fmt.Errorf("staging attachment: owner native id and ref are required")
	}
	var existing entities.Attachment
	err := s.DB.Where("owner_kind = ? AND owner_native_id = ? AND ref = ?",
		row.OwnerKind, row.OwnerNativeID, row.Ref).First(&existing).Error
	if err == nil {
		row.ID = existing.ID
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.DB.Create(row).Error
}

// FetchUsers returns a page of staged users with native id greater than the
// cursor, ordered by native id ascending. The ordering is stable across
// reruns, which is what makes resumption deterministic.
func (s *Store) FetchUsers(afterNativeID string, limit int) ([]entities.StagingUser, error) {
	var rows []entities.StagingUser
	err := s.DB.Where("native_id > ?", afterNativeID).
		Order("native_id asc").Limit(limit).Find(&rows).Error
	return rows, err
}

// FetchCategories returns a page of staged categories ordered by native id.
func (s *Store) FetchCategories(afterNativeID string, limit int) ([]entities.StagingCategory, error) {
	var rows []entities.StagingCategory
	err := s.DB.Where("native_id > ?", afterNativeID).
		Order("native_id asc").Limit(limit).Find(&rows).Error
	return rows, err
}

// FetchTopics returns a page of staged topics ordered by native id.
func (s *Store) FetchTopics(afterNativeID string, limit int) ([]entities.StagingTopic, error) {
	var rows []entities.StagingTopic
	err := s.DB.Where("native_id > ?", afterNativeID).
		Order("native_id asc").Limit(limit).Find(&rows).Error
	return rows, err
}

// FetchPosts returns a page of staged posts ordered by native id.
func (s *Store) FetchPosts(afterNativeID string, limit int) ([]entities.StagingPost, error) {
	var rows []entities.StagingPost
	err := s.DB.Where("native_id > ?", afterNativeID).
		Order("native_id asc").Limit(limit).Find(&rows).Error
	return rows, err
}

// GetTopic fetches one staged topic by native id.
func (s *Store) GetTopic(nativeID string) (*entities.StagingTopic, error) {
	var row entities.StagingTopic
	if err := s.DB.Where("native_id = ?", nativeID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetPost fetches one staged post by native id.
func (s *Store) GetPost(nativeID string) (*entities.StagingPost, error) {
	var row entities.StagingPost
	if err := s.DB.Where("native_id = ?", nativeID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Attachments returns the attachment references staged for one topic or post.
func (s *Store) Attachments(ownerKind entities.Kind, ownerNativeID string) ([]entities.Attachment, error) {
	var rows []entities.Attachment
	err := s.DB.Where("owner_kind = ? AND owner_native_id = ?", ownerKind, ownerNativeID).
		Order("id asc").Find(&rows).Error
	return rows, err
}

// CountUsers returns the total staged user count. Counts feed progress
// reporting only; correctness never depends on them.
func (s *Store) CountUsers() (int64, error) {
	var n int64
	err := s.DB.Model(&entities.StagingUser{}).Count(&n).Error
	return n, err
}

func (s *Store) CountCategories() (int64, error) {
	var n int64
	err := s.DB.Model(&entities.StagingCategory{}).Count(&n).Error
	return n, err
}

func (s *Store) CountTopics() (int64, error) {
	var n int64
	err := s.DB.Model(&entities.StagingTopic{}).Count(&n).Error
	return n, err
}

func (s *Store) CountPosts() (int64, error) {
	var n int64
	err := s.DB.Model(&entities.StagingPost{}).Count(&n).Error
	return n, err
}

// DeleteUnusedUsers prunes staged users that authored no topic and no post.
// Source systems commonly list deactivated accounts alongside active ones;
// importing them would create empty target accounts. Returns the number of
// pruned rows.
func (s *Store) DeleteUnusedUsers() (int64, error) {
	res := s.DB.Where(
		"native_id NOT IN (SELECT DISTINCT author_native_id FROM staging_topics WHERE author_native_id != '')"+
			" AND native_id NOT IN (SELECT DISTINCT author_native_id FROM staging_posts WHERE author_native_id != '')",
	).Delete(&entities.StagingUser{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("Pruned %d staged users with no topic or post", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// SortPostsByCreatedAt rebuilds the side table interleaving topics and posts
// in global creation-time order. The source usually exposes topics and
// replies as separate, unordered tables, but the target assigns
// order-sensitive post numbers, so creation walks this table instead.
func (s *Store) SortPostsByCreatedAt() error {
	if err := s.DB.Exec("DELETE FROM creation_orders").Error; err != nil {
		return fmt.Errorf("reset creation order: %w", err)
	}

	err := s.DB.Exec(
		"INSERT INTO creation_orders (kind, native_id, posted_at) " +
			"SELECT kind, native_id, posted_at FROM (" +
			" SELECT 'topic' AS kind, native_id, posted_at FROM staging_topics" +
			" UNION ALL" +
			" SELECT 'post' AS kind, native_id, posted_at FROM staging_posts" +
			") ORDER BY posted_at asc, native_id asc",
	).Error
	if err != nil {
		return fmt.Errorf("materialize creation order: %w", err)
	}
	return nil
}

// FetchCreationOrder returns a page of the creation-time order table.
func (s *Store) FetchCreationOrder(afterPosition uint, limit int) ([]entities.CreationOrder, error) {
	var rows []entities.CreationOrder
	err := s.DB.Where("position > ?", afterPosition).
		Order("position asc").Limit(limit).Find(&rows).Error
	return rows, err
}

// CountCreationOrder returns the number of rows in the order table.
func (s *Store) CountCreationOrder() (int64, error) {
	var n int64
	err := s.DB.Model(&entities.CreationOrder{}).Count(&n).Error
	return n, err
}
