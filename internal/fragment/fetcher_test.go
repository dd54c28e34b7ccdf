package fragment

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dubedition/guidecore/internal/errors"
)

// =============================================================================
// HTTP Fetcher Tests
// =============================================================================

func TestHTTPFetcher_FetchesBody(t *testing.T) {
	// Given: an origin serving fragment content
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<section><h2>Audio</h2></section>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL)

	// When: fetching a relative target
	body, err := f.Fetch(context.Background(), "./content/audio.html")

	// Then: the body comes back verbatim
	require.NoError(t, err)
	assert.Equal(t, "<section><h2>Audio</h2></section>", body)
}

func TestHTTPFetcher_AbsoluteURL_SkipsBase(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// Base deliberately points nowhere; the absolute URL must win.
	f := NewHTTPFetcher(srv.Client(), "http://unused.invalid")

	_, err := f.Fetch(context.Background(), srv.URL+"/direct/audio.html")

	require.NoError(t, err)
	assert.Equal(t, "/direct/audio.html", gotPath)
}

func TestHTTPFetcher_Non2xx_ReturnsHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL)

	_, err := f.Fetch(context.Background(), "missing.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeHTTPStatus, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestHTTPFetcher_SlowOrigin_ReturnsTimeout(t *testing.T) {
	// Given: an origin slower than the fetch deadline
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// When: the deadline expires mid-fetch
	_, err := f.Fetch(ctx, "slow.html")

	// Then: the failure is a retryable timeout
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFetchTimeout, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestHTTPFetcher_RelativeWithoutBase_ReturnsInvalidPath(t *testing.T) {
	f := NewHTTPFetcher(nil, "")

	_, err := f.Fetch(context.Background(), "./content/audio.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
}

func TestHTTPFetcher_RepeatedFailures_OpenCircuit(t *testing.T) {
	// Given: an origin that always fails
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL)

	// When: failures accumulate past the breaker threshold
	for i := 0; i < 5; i++ {
		_, err := f.Fetch(context.Background(), "flaky.html")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeHTTPStatus, errors.GetCode(err))
	}

	// Then: the next fetch fails fast as unavailable without hitting the origin
	_, err := f.Fetch(context.Background(), "flaky.html")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFetchUnavailable, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

// =============================================================================
// File Fetcher Tests
// =============================================================================

func TestFileFetcher_ReadsRelativeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content", "audio.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("<p>levels</p>"), 0o644))

	f := NewFileFetcher(dir)

	body, err := f.Fetch(context.Background(), "./content/audio.html")

	require.NoError(t, err)
	assert.Equal(t, "<p>levels</p>", body)
}

func TestFileFetcher_MissingFile_ReturnsNotFound(t *testing.T) {
	f := NewFileFetcher(t.TempDir())

	_, err := f.Fetch(context.Background(), "./content/nope.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestFileFetcher_RemoteTarget_Rejected(t *testing.T) {
	f := NewFileFetcher(t.TempDir())

	_, err := f.Fetch(context.Background(), "https://example.com/audio.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
}

func TestFileFetcher_EscapingPath_Rejected(t *testing.T) {
	f := NewFileFetcher(t.TempDir())

	_, err := f.Fetch(context.Background(), "../../etc/passwd")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
}

func TestFileFetcher_CancelledContext_Fails(t *testing.T) {
	f := NewFileFetcher(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "./content/audio.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFetchUnavailable, errors.GetCode(err))
}

func TestHTTPFetcher_TransientFailure_IsRetried(t *testing.T) {
	// Given: an origin that drops the first two connections mid-request
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte("<p>recovered</p>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL)
	f.retry.InitialDelay = time.Millisecond
	f.retry.MaxDelay = 2 * time.Millisecond

	// When: fetching through the flaky patch
	body, err := f.Fetch(context.Background(), "flaky.html")

	// Then: backoff rides out the failures and the body lands
	require.NoError(t, err)
	assert.Equal(t, "<p>recovered</p>", body)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPFetcher_HTTPStatusFailure_IsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL)

	_, err := f.Fetch(context.Background(), "missing.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeHTTPStatus, errors.GetCode(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestHTTPFetcher_OversizedBody_ReturnsFileTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), maxFragmentSize+1))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), srv.URL)

	_, err := f.Fetch(context.Background(), "huge.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileTooLarge, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestFileFetcher_OversizedFile_ReturnsFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.html")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), maxFragmentSize+1), 0o644))

	f := NewFileFetcher(dir)

	_, err := f.Fetch(context.Background(), "huge.html")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileTooLarge, errors.GetCode(err))
}

func TestFileFetcher_BinaryContent_ReturnsFileCorrupt(t *testing.T) {
	// Given: a fragment source pointing at non-text bytes
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0xff, 0xfe, 0x00}, 0o644))

	f := NewFileFetcher(dir)

	_, err := f.Fetch(context.Background(), "photo.png")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileCorrupt, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))
}
