package uploads

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDownloader(t *testing.T) *Downloader {
	d, err := NewDownloader(t.TempDir(), 3, time.Millisecond)
	require.NoError(t, err)
	return d
}

func TestFetch_LocalFile(t *testing.T) {
	d := newTestDownloader(t)

	src := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(src, []byte("image-bytes"), 0644))

	f, err := d.Fetch(src)
	require.NoError(t, err)
	assert.Equal(t, "pic.png", f.Filename)
	assert.NotEmpty(t, f.Hash)

	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestFetch_MissingLocalFile(t *testing.T) {
	d := newTestDownloader(t)

	_, err := d.Fetch("/nonexistent/file.png")
	assert.Error(t, err)
}

func TestFetch_URLWithRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("avatar-bytes"))
	}))
	defer srv.Close()

	d := newTestDownloader(t)

	f, err := d.Fetch(srv.URL + "/avatars/alice.jpg")
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "should retry until success")
	assert.Equal(t, "alice.jpg", f.Filename)
}

func TestFetch_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newTestDownloader(t)

	_, err := d.Fetch(srv.URL + "/gone.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestFetch_DeduplicatesByContentHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("same-bytes"))
	}))
	defer srv.Close()

	d := newTestDownloader(t)

	a, err := d.Fetch(srv.URL + "/one.png")
	require.NoError(t, err)
	b, err := d.Fetch(srv.URL + "/two.png")
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, a.Path, b.Path, "identical content shares one cache file")
}

func TestFetch_SameRefFetchedOnce(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	d := newTestDownloader(t)

	_, err := d.Fetch(srv.URL + "/pic.png")
	require.NoError(t, err)
	_, err = d.Fetch(srv.URL + "/pic.png")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}
