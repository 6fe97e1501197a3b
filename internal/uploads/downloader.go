// Package uploads fetches avatars and attachment files referenced by staging
// rows into a local cache, keyed by content hash so the same file is stored
// and uploaded once no matter how many rows reference it.
package uploads

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mrlokans/forumport/internal/utils"
)

// File is a fetched file ready for upload.
type File struct {
	Path     string // location in the local cache
	Filename string // original filename to present to the target
	Hash     string // blake2b-256 of the content, hex encoded
}

// Downloader resolves attachment references. References may be URLs (fetched
// with bounded retries and backoff) or paths on the local filesystem (typical
// for database-dump exports shipped with a files directory).
type Downloader struct {
	dir        string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration

	// byRef short-circuits repeated references within one run. Guarded by mu:
	// avatar imports run on task workers concurrently with the main pass.
	mu    sync.Mutex
	byRef map[string]File
}

// NewDownloader creates a downloader caching into dir.
func NewDownloader(dir string, maxRetries int, retryDelay time.Duration) (*Downloader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Downloader{
		dir: dir,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		byRef:      make(map[string]File),
	}, nil
}

// Fetch resolves one reference to a cached local file. Fetching the same
// reference again returns the already-cached file.
func (d *Downloader) Fetch(ref string) (File, error) {
	d.mu.Lock()
	if f, ok := d.byRef[ref]; ok {
		d.mu.Unlock()
		return f, nil
	}
	d.mu.Unlock()

	var (
		f   File
		err error
	)
	if isURL(ref) {
		f, err = d.fetchURL(ref)
	} else {
		f, err = d.fetchLocal(ref)
	}
	if err != nil {
		return File{}, err
	}

	d.mu.Lock()
	d.byRef[ref] = f
	d.mu.Unlock()
	return f, nil
}

func isURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func (d *Downloader) fetchLocal(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read attachment %s: %w", path, err)
	}
	return d.store(data, utils.SanitizeFilename(filepath.Base(path)))
}

func (d *Downloader) fetchURL(rawURL string) (File, error) {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if attempt > 1 {
			time.Sleep(d.retryDelay * time.Duration(attempt-1))
		}

		data, err := d.download(rawURL)
		if err != nil {
			lastErr = err
			continue
		}
		return d.store(data, filenameFromURL(rawURL))
	}
	return File{}, fmt.Errorf("download %s after %d attempts: %w", rawURL, d.maxRetries, lastErr)
}

func (d *Downloader) download(rawURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "forumport/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// store writes data into the cache under its content hash. Identical content
// arriving under different references lands on the same cache file.
func (d *Downloader) store(data []byte, filename string) (File, error) {
	sum := blake2b.Sum256(data)
	hash := fmt.Sprintf("%x", sum[:])

	cachePath := filepath.Join(d.dir, hash[:16]+filepath.Ext(filename))
	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		tmp, err := os.CreateTemp(d.dir, "fetch_tmp_")
		if err != nil {
			return File{}, err
		}
		tmpPath := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return File{}, err
		}
		tmp.Close()
		if err := os.Rename(tmpPath, cachePath); err != nil {
			os.Remove(tmpPath)
			return File{}, err
		}
	}

	return File{Path: cachePath, Filename: filename, Hash: hash}, nil
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "attachment"
	}
	name := filepath.Base(u.Path)
	if name == "." || strings.TrimSpace(name) == "" {
		return "attachment"
	}
	return utils.SanitizeFilename(name)
}
