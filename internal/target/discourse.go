package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// DiscourseClient implements Client against the Discourse admin API.
// API docs: https://docs.discourse.org/
type DiscourseClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	apiUsername string
	rateLimiter *rateLimiter
}

type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) wait() {
	if r.interval <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Since(r.lastCall)
	if since < r.interval {
		time.Sleep(r.interval - since)
	}
	r.lastCall = time.Now()
}

// NewDiscourseClient creates a client for one Discourse instance. The api
// key must be a global admin key; apiUsername is the acting admin account.
func NewDiscourseClient(baseURL, apiKey, apiUsername string, timeout, rateInterval time.Duration) *DiscourseClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DiscourseClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		apiUsername: apiUsername,
		rateLimiter: newRateLimiter(rateInterval),
	}
}

func (c *DiscourseClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	c.rateLimiter.wait()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(method, path, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

func (c *DiscourseClient) setAuth(req *http.Request) {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Api-Username", c.apiUsername)
}

// apiError surfaces the platform's validation detail so a rejected row can be
// diagnosed from the log line alone.
func (c *DiscourseClient) apiError(method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var detail struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && len(detail.Errors) > 0 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.Join(detail.Errors, "; "))
	}
	return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
}

func (c *DiscourseClient) CreateUser(ctx context.Context, fields UserFields) (int64, error) {
	payload := map[string]any{
		"name":     fields.Name,
		"email":    fields.Email,
		"username": fields.Username,
		"active":   fields.Active,
		"approved": true,
	}
	if !fields.CreatedAt.IsZero() {
		payload["created_at"] = fields.CreatedAt.Format(time.RFC3339)
	}
	if fields.Bio != "" {
		payload["bio_raw"] = fields.Bio
	}
	if fields.Admin {
		payload["admin"] = true
	}
	if fields.Moderator {
		payload["moderator"] = true
	}
	if len(fields.CustomFields) > 0 {
		payload["custom_fields"] = fields.CustomFields
	}

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		UserID  int64  `json:"user_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/users.json", payload, &out); err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, fmt.Errorf("create user %q rejected: %s", fields.Username, out.Message)
	}
	return out.UserID, nil
}

func (c *DiscourseClient) CreateCategory(ctx context.Context, fields CategoryFields) (int64, error) {
	payload := map[string]any{
		"name":        fields.Name,
		"description": fields.Description,
		"position":    fields.Position,
	}
	if fields.ParentID != 0 {
		payload["parent_category_id"] = fields.ParentID
	}

	var out struct {
		Category struct {
			ID int64 `json:"id"`
		} `json:"category"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/categories.json", payload, &out); err != nil {
		return 0, err
	}
	return out.Category.ID, nil
}

func (c *DiscourseClient) CreateTopic(ctx context.Context, fields TopicFields) (TopicResult, error) {
	payload := map[string]any{
		"title":            fields.Title,
		"raw":              fields.Raw,
		"category":         fields.CategoryID,
		"import_mode":      true,
		"author_id":        fields.AuthorID,
		"skip_validations": true,
	}
	if !fields.CreatedAt.IsZero() {
		payload["created_at"] = fields.CreatedAt.Format(time.RFC3339)
	}
	if fields.Closed {
		payload["closed"] = true
	}
	if fields.Pinned {
		payload["pinned"] = true
	}

	var out struct {
		ID      int64 `json:"id"`
		TopicID int64 `json:"topic_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/posts.json", payload, &out); err != nil {
		return TopicResult{}, err
	}
	return TopicResult{PostID: out.ID, TopicID: out.TopicID}, nil
}

func (c *DiscourseClient) CreatePost(ctx context.Context, fields PostFields) (int64, error) {
	payload := map[string]any{
		"topic_id":         fields.TopicID,
		"raw":              fields.Raw,
		"import_mode":      true,
		"author_id":        fields.AuthorID,
		"skip_validations": true,
	}
	if !fields.CreatedAt.IsZero() {
		payload["created_at"] = fields.CreatedAt.Format(time.RFC3339)
	}
	if fields.ReplyToPostID != 0 {
		payload["reply_to_post_id"] = fields.ReplyToPostID
	}

	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/posts.json", payload, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *DiscourseClient) UploadFile(ctx context.Context, ownerID int64, path, filename string) (Upload, error) {
	c.rateLimiter.wait()

	file, err := os.Open(path)
	if err != nil {
		return Upload{}, fmt.Errorf("open upload %s: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("type", "composer"); err != nil {
		return Upload{}, err
	}
	if err := w.WriteField("user_id", fmt.Sprintf("%d", ownerID)); err != nil {
		return Upload{}, err
	}
	if err := w.WriteField("synchronous", "true"); err != nil {
		return Upload{}, err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return Upload{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return Upload{}, fmt.Errorf("read upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads.json", &buf)
	if err != nil {
		return Upload{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Upload{}, fmt.Errorf("POST /uploads.json: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Upload{}, c.apiError(http.MethodPost, "/uploads.json", resp)
	}

	var out struct {
		ID       int64  `json:"id"`
		ShortURL string `json:"short_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Upload{}, fmt.Errorf("decode upload response: %w", err)
	}
	return Upload{ID: out.ID, ShortURL: out.ShortURL}, nil
}

func (c *DiscourseClient) RenderReference(upload Upload, filename string) string {
	return fmt.Sprintf("[%s](%s)", filename, upload.ShortURL)
}

func (c *DiscourseClient) SetAvatar(ctx context.Context, username string, uploadID int64) error {
	payload := map[string]any{
		"upload_id": uploadID,
		"type":      "uploaded",
	}
	path := fmt.Sprintf("/u/%s/preferences/avatar/pick.json", username)
	return c.doJSON(ctx, http.MethodPut, path, payload, nil)
}

func (c *DiscourseClient) RegisterPermalink(ctx context.Context, oldURL string, ref PermalinkRef) error {
	payload := map[string]any{
		"url": oldURL,
	}
	switch {
	case ref.TopicID != 0:
		payload["topic_id"] = ref.TopicID
	case ref.PostID != 0:
		payload["post_id"] = ref.PostID
	case ref.CategoryID != 0:
		payload["category_id"] = ref.CategoryID
	default:
		return fmt.Errorf("permalink for %s: no target reference", oldURL)
	}
	return c.doJSON(ctx, http.MethodPost, "/admin/permalinks.json", payload, nil)
}
