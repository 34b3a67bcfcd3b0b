package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"gotest.tools/v3/assert"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	assert.NilError(t, err)
	return u
}

func TestGetHTTP(t *testing.T) {
	t.Parallel()

	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := NewClient(Config{})
	body, err := client.Get(context.Background(), mustURL(t, server.URL+"/noarch/repodata.json"))
	assert.NilError(t, err)
	assert.Equal(t, string(body), "payload")
	assert.Equal(t, gotUserAgent, UserAgent())
}

func TestGetRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer server.Close()

	client := NewClient(Config{})
	body, err := client.Get(context.Background(), mustURL(t, server.URL+"/pkg.conda"))
	assert.NilError(t, err)
	assert.Equal(t, string(body), "eventually")
	assert.Equal(t, atomic.LoadInt32(&calls), int32(3))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{})
	_, err := client.Get(context.Background(), mustURL(t, server.URL+"/missing.conda"))
	assert.Assert(t, err != nil)
	assert.Equal(t, atomic.LoadInt32(&calls), int32(1))
}

func TestGetExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{})
	_, err := client.Get(context.Background(), mustURL(t, server.URL+"/pkg.conda"))
	assert.Assert(t, err != nil)

	// initial attempt plus maxRetries
	assert.Equal(t, atomic.LoadInt32(&calls), int32(1+maxRetries))
}

func TestGetFileScheme(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "repodata.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{"packages": {}}`), 0644))

	client := NewClient(Config{})
	body, err := client.Get(context.Background(), mustURL(t, "file://"+filepath.ToSlash(path)))
	assert.NilError(t, err)
	assert.Equal(t, string(body), `{"packages": {}}`)
}

func TestGetRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{})
	_, err := client.Get(context.Background(), mustURL(t, "gopher://example.com/x"))
	assert.Assert(t, err != nil)
}

func TestHeadHTTP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/noarch/repodata.json" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{})

	exists, err := client.Head(context.Background(), mustURL(t, server.URL+"/noarch/repodata.json"))
	assert.NilError(t, err)
	assert.Assert(t, exists)

	exists, err = client.Head(context.Background(), mustURL(t, server.URL+"/win-64/repodata.json"))
	assert.NilError(t, err)
	assert.Assert(t, !exists)
}

func TestHeadFileScheme(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "repodata.json")
	assert.NilError(t, os.WriteFile(path, []byte("{}"), 0644))

	client := NewClient(Config{})

	exists, err := client.Head(context.Background(), mustURL(t, "file://"+filepath.ToSlash(path)))
	assert.NilError(t, err)
	assert.Assert(t, exists)

	exists, err = client.Head(context.Background(), mustURL(t, "file://"+filepath.ToSlash(dir)+"/absent.json"))
	assert.NilError(t, err)
	assert.Assert(t, !exists)
}
