package public_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oi-archive/usaco-crawler/plugin/public"
)

func TestSafeGetRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	b, err := public.NewFetcher(time.Second, 0, 3, "").Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(b))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSafeGetReturnsLastStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := public.NewFetcher(time.Second, 0, 2, "").SafeGet(context.Background(), srv.URL)
	var se *public.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, srv.URL, se.URL)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSafeGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := public.NewFetcher(time.Second, 0, 3, "").Download(context.Background(), srv.URL)
	var se *public.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSafeGetHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := public.NewFetcher(time.Second, time.Hour, 1, "").SafeGet(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetDocumentSetsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><h2>" + r.UserAgent() + "</h2></body></html>"))
	}))
	defer srv.Close()

	doc, err := public.NewFetcher(time.Second, 0, 1, "oi-archive").GetDocument(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "oi-archive", doc.Find("h2").Text())
}

func TestMarshal(t *testing.T) {
	b, err := public.Marshal([]string{"<b> & c"})
	require.NoError(t, err)
	assert.Equal(t, `["<b> & c"]`, string(b))
}

func TestMarshalObjectKeepsKeyOrder(t *testing.T) {
	b, err := public.MarshalObject([]string{"z", "missing", "a"}, map[string]interface{}{
		"a": "<b> & c",
		"z": []int{},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"z\": [],\n  \"a\": \"<b> & c\"\n}\n", string(b))

	b, err = public.MarshalObject(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(b))
}

func TestObjectKeys(t *testing.T) {
	keys, err := public.ObjectKeys([]byte(`{"Silver": [1, {"x": 2}], "Bronze": {}, "10": null}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Silver", "Bronze", "10"}, keys)

	keys, err = public.ObjectKeys([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = public.ObjectKeys([]byte(`[1]`))
	assert.Error(t, err)
}

func TestSortNumeric(t *testing.T) {
	keys := []string{"b", "100", "99", "a", "5"}
	public.SortNumeric(keys)
	assert.Equal(t, []string{"5", "99", "100", "a", "b"}, keys)
}

func TestFileListPaths(t *testing.T) {
	fl := public.FileList{"b": nil, "a/c": nil, "a": nil}
	assert.Equal(t, []string{"a", "a/c", "b"}, fl.Paths())
}

func TestWriteFiles(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(t.TempDir(), "abs.json")
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.txt"), []byte("old"), 0o644))

	err := public.WriteFiles(root, public.FileList{
		"old.txt":         []byte("new"),
		"nested/dir/a.md": []byte("a"),
		abs:               []byte("{}"),
	})
	require.NoError(t, err)

	read := func(path string) string {
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, "new", read(filepath.Join(root, "old.txt")))
	assert.Equal(t, "a", read(filepath.Join(root, "nested", "dir", "a.md")))
	assert.Equal(t, "{}", read(abs))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temporary file %s left behind", e.Name())
	}
}

func TestWriteFilesLeavesTargetsOnFailure(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("old"), 0o644))
	// a regular file where a directory is needed makes the second write fail
	require.NoError(t, os.WriteFile(filepath.Join(root, "z"), nil, 0o644))

	err := public.WriteFiles(root, public.FileList{
		"keep.txt": []byte("new"),
		"z/file":   []byte("x"),
	})
	require.Error(t, err)

	b, err := os.ReadFile(keep)
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
