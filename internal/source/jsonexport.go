package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrlokans/forumport/internal/entities"
	"github.com/mrlokans/forumport/internal/staging"
)

// ExportAttachment is a file referenced by an exported topic or post. Ref may
// be a URL or a path relative to the export directory.
type ExportAttachment struct {
	Ref      string `json:"ref"`
	Filename string `json:"filename"`
}

// ExportUser is one user row from users.json.
type ExportUser struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Name         string            `json:"name"`
	Username     string            `json:"username"`
	RegisteredAt string            `json:"registered_at"`
	Bio          string            `json:"bio"`
	AvatarRef    string            `json:"avatar_url"`
	Active       bool              `json:"active"`
	Admin        bool              `json:"admin"`
	Moderator    bool              `json:"moderator"`
	CustomFields map[string]string `json:"custom_fields"`
}

// ExportCategory is one category row from categories.json.
type ExportCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
	Position    int    `json:"position"`
	URL         string `json:"url"`
}

// ExportTopic is one thread row from topics.json.
type ExportTopic struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Raw         string             `json:"raw"`
	CategoryID  string             `json:"category_id"`
	AuthorID    string             `json:"author_id"`
	CreatedAt   string             `json:"created_at"`
	Closed      bool               `json:"closed"`
	Pinned      bool               `json:"pinned"`
	URL         string             `json:"url"`
	Attachments []ExportAttachment `json:"attachments"`
}

// ExportPost is one reply row from posts.json.
type ExportPost struct {
	ID          string             `json:"id"`
	TopicID     string             `json:"topic_id"`
	AuthorID    string             `json:"author_id"`
	ReplyToID   string             `json:"reply_to_id"`
	Raw         string             `json:"raw"`
	CreatedAt   string             `json:"created_at"`
	URL         string             `json:"url"`
	Attachments []ExportAttachment `json:"attachments"`
}

// JSONExportReader stages a directory holding users.json, categories.json,
// topics.json and posts.json, each a JSON array. Missing files are fine; a
// users-only export is a valid export.
type JSONExportReader struct {
	dir string
}

// NewJSONExportReader creates a reader over an export directory.
func NewJSONExportReader(dir string) *JSONExportReader {
	return &JSONExportReader{dir: dir}
}

// Stage implements Reader.
func (r *JSONExportReader) Stage(ctx context.Context, store *staging.Store) (StageResult, error) {
	var res StageResult

	if err := r.stageUsers(ctx, store, &res); err != nil {
		return res, err
	}
	if err := r.stageCategories(ctx, store, &res); err != nil {
		return res, err
	}
	if err := r.stageTopics(ctx, store, &res); err != nil {
		return res, err
	}
	if err := r.stagePosts(ctx, store, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (r *JSONExportReader) stageUsers(ctx context.Context, store *staging.Store, res *StageResult) error {
	rows, ok, err := readArray[ExportUser](r.dir, "users.json")
	if err != nil || !ok {
		return err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		custom := ""
		if len(row.CustomFields) > 0 {
			data, err := json.Marshal(row.CustomFields)
			if err == nil {
				custom = string(data)
			}
		}

		err := store.InsertUser(&entities.StagingUser{
			NativeID:     row.ID,
			Email:        row.Email,
			Name:         row.Name,
			Username:     row.Username,
			RegisteredAt: parseExportTime(row.RegisteredAt),
			Bio:          row.Bio,
			AvatarRef:    r.resolveRef(row.AvatarRef),
			Active:       row.Active,
			Admin:        row.Admin,
			Moderator:    row.Moderator,
			CustomFields: custom,
		})
		if err != nil {
			if errors.Is(err, staging.ErrAmbiguousIdentity) {
				return fmt.Errorf("users.json[%d]: %w", i, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("users.json[%d]: %v", i, err))
			continue
		}
		res.Users++
	}
	return nil
}

func (r *JSONExportReader) stageCategories(ctx context.Context, store *staging.Store, res *StageResult) error {
	rows, ok, err := readArray[ExportCategory](r.dir, "categories.json")
	if err != nil || !ok {
		return err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := store.InsertCategory(&entities.StagingCategory{
			NativeID:       row.ID,
			Name:           row.Name,
			Description:    row.Description,
			ParentNativeID: row.ParentID,
			Position:       row.Position,
			ImportURL:      row.URL,
		})
		if err != nil {
			if errors.Is(err, staging.ErrAmbiguousIdentity) {
				return fmt.Errorf("categories.json[%d]: %w", i, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("categories.json[%d]: %v", i, err))
			continue
		}
		res.Categories++
	}
	return nil
}

func (r *JSONExportReader) stageTopics(ctx context.Context, store *staging.Store, res *StageResult) error {
	rows, ok, err := readArray[ExportTopic](r.dir, "topics.json")
	if err != nil || !ok {
		return err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := store.InsertTopic(&entities.StagingTopic{
			NativeID:         row.ID,
			Title:            row.Title,
			Raw:              row.Raw,
			CategoryNativeID: row.CategoryID,
			AuthorNativeID:   row.AuthorID,
			PostedAt:         parseExportTime(row.CreatedAt),
			Closed:           row.Closed,
			Pinned:           row.Pinned,
			ImportURL:        row.URL,
		})
		if err != nil {
			if errors.Is(err, staging.ErrAmbiguousIdentity) {
				return fmt.Errorf("topics.json[%d]: %w", i, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("topics.json[%d]: %v", i, err))
			continue
		}
		res.Topics++

		r.stageAttachments(store, res, entities.KindTopic, row.ID, row.Attachments)
	}
	return nil
}

func (r *JSONExportReader) stagePosts(ctx context.Context, store *staging.Store, res *StageResult) error {
	rows, ok, err := readArray[ExportPost](r.dir, "posts.json")
	if err != nil || !ok {
		return err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := store.InsertPost(&entities.StagingPost{
			NativeID:        row.ID,
			TopicNativeID:   row.TopicID,
			AuthorNativeID:  row.AuthorID,
			ReplyToNativeID: row.ReplyToID,
			Raw:             row.Raw,
			PostedAt:        parseExportTime(row.CreatedAt),
			ImportURL:       row.URL,
		})
		if err != nil {
			if errors.Is(err, staging.ErrAmbiguousIdentity) {
				return fmt.Errorf("posts.json[%d]: %w", i, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("posts.json[%d]: %v", i, err))
			continue
		}
		res.Posts++

		r.stageAttachments(store, res, entities.KindPost, row.ID, row.Attachments)
	}
	return nil
}

func (r *JSONExportReader) stageAttachments(store *staging.Store, res *StageResult, kind entities.Kind, ownerID string, atts []ExportAttachment) {
	for _, att := range atts {
		if att.Ref == "" {
			continue
		}
		filename := att.Filename
		if filename == "" {
			filename = filepath.Base(att.Ref)
		}
		err := store.InsertAttachment(&entities.Attachment{
			OwnerKind:     kind,
			OwnerNativeID: ownerID,
			Ref:           r.resolveRef(att.Ref),
			Filename:      filename,
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("attachment %s of %s %s: %v", att.Ref, kind, ownerID, err))
			continue
		}
		res.Attachments++
	}
}

// resolveRef anchors relative file references at the export directory so the
// pipeline can fetch them regardless of its own working directory.
func (r *JSONExportReader) resolveRef(ref string) string {
	if ref == "" || filepath.IsAbs(ref) || isRemoteRef(ref) {
		return ref
	}
	return filepath.Join(r.dir, ref)
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// readArray decodes one export file into typed rows. The second return is
// false when the file does not exist.
func readArray[T any](dir, name string) ([]T, bool, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", name, err)
	}
	return rows, true, nil
}

func parseExportTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t
		}
	}

	// Unix seconds are common in database dumps.
	var unix int64
	if _, err := fmt.Sscanf(ts, "%d", &unix); err == nil && unix > 0 {
		return time.Unix(unix, 0).UTC()
	}
	return time.Time{}
}

// Compile-time interface check
var _ Reader = (*JSONExportReader)(nil)
