package fragment

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dubedition/guidecore/internal/errors"
)

// maxFragmentSize caps a single fetched body at 4MB. Guide fragments are
// section-sized HTML snippets, so anything larger is a misconfigured source.
const maxFragmentSize = 4 << 20

// Fetcher retrieves the body of a resolved fragment source.
// Implementations classify failures with the fetch error taxonomy
// (timeout, unavailable, HTTP status); emptiness is checked by the loader.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (string, error)
}

// HTTPFetcher fetches fragment bodies over HTTP(S). Site-relative targets
// (./content/..., /assets/...) are joined onto a base URL. Retryable
// transport failures are retried with backoff, and requests flow through
// a circuit breaker so a flapping origin stops being hammered: an
// exhausted retry run counts as one breaker failure.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
	breaker *errors.CircuitBreaker
	retry   errors.RetryConfig
}

// NewHTTPFetcher creates an HTTP fetcher. A nil client uses
// http.DefaultClient; baseURL anchors site-relative targets and may be
// empty when only absolute URLs are expected.
func NewHTTPFetcher(client *http.Client, baseURL string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		breaker: errors.NewCircuitBreaker("fragment-fetch"),
		retry:   errors.FetchRetryConfig(),
	}
}

// Fetch retrieves the target over HTTP.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) (string, error) {
	reqURL, err := f.requestURL(target)
	if err != nil {
		return "", err
	}

	var body string
	err = f.breaker.Execute(func() error {
		var fetchErr error
		body, fetchErr = errors.RetryWithResult(ctx, f.retry, func() (string, error) {
			return f.fetch(ctx, reqURL)
		})
		return fetchErr
	})
	if stderrors.Is(err, errors.ErrCircuitOpen) {
		return "", errors.New(errors.ErrCodeFetchUnavailable,
			fmt.Sprintf("fragment source unavailable: %s", target), err).
			WithDetail("target", target).
			WithSuggestion("The content origin is failing repeatedly. Wait a moment and retry.")
	}
	if err != nil {
		return "", err
	}
	return body, nil
}

// requestURL joins site-relative targets onto the base URL.
func (f *HTTPFetcher) requestURL(target string) (string, error) {
	switch {
	case hasScheme(target):
		return target, nil
	case strings.HasPrefix(target, "//"):
		return "https:" + target, nil
	default:
		if f.baseURL == "" {
			return "", errors.New(errors.ErrCodeInvalidPath,
				fmt.Sprintf("relative fragment source %q requires a base URL", target), nil).
				WithDetail("target", target)
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(target, "."), "/")
		return f.baseURL + "/" + rel, nil
	}
}

func (f *HTTPFetcher) fetch(ctx context.Context, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("invalid fragment source URL: %s", reqURL), err).
			WithDetail("url", reqURL)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyTransportError(reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.New(errors.ErrCodeHTTPStatus,
			fmt.Sprintf("fragment fetch returned HTTP %d", resp.StatusCode), nil).
			WithDetail("url", reqURL).
			WithDetail("status", resp.Status).
			WithSuggestion("Check that the content source path is correct.")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFragmentSize+1))
	if err != nil {
		return "", classifyTransportError(reqURL, err)
	}
	if len(data) > maxFragmentSize {
		return "", errors.New(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("fragment body exceeds %dMB", maxFragmentSize>>20), nil).
			WithDetail("url", reqURL).
			WithSuggestion("Split the section into smaller fragments.")
	}
	return string(data), nil
}

// classifyTransportError maps transport failures onto the fetch taxonomy:
// deadline expiry becomes a retryable timeout, everything else a retryable
// unavailability.
func classifyTransportError(reqURL string, err error) *errors.GuideError {
	if stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return errors.New(errors.ErrCodeFetchTimeout,
			"fragment fetch timed out", err).
			WithDetail("url", reqURL).
			WithSuggestion("Retry the fragment, or raise content.fetch_timeout in .guidecore.yaml.")
	}
	return errors.New(errors.ErrCodeFetchUnavailable,
		"fragment fetch failed", err).
		WithDetail("url", reqURL)
}

// isTimeout reports whether the error chain carries a net-style timeout.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if stderrors.As(err, &t) {
		return t.Timeout()
	}
	var ue *url.Error
	if stderrors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}

// FileFetcher reads fragment bodies from the site directory on disk,
// used when serving or rendering a local guide tree.
type FileFetcher struct {
	root string
}

// NewFileFetcher creates a fetcher rooted at the site directory.
func NewFileFetcher(root string) *FileFetcher {
	if root == "" {
		root = "."
	}
	return &FileFetcher{root: root}
}

// Fetch reads the target path relative to the site root. Absolute-URL
// targets are rejected; this fetcher only serves local content.
func (f *FileFetcher) Fetch(ctx context.Context, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classifyTransportError(target, err)
	}
	if hasScheme(target) || strings.HasPrefix(target, "//") {
		return "", errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("remote fragment source %q cannot be read from disk", target), nil).
			WithDetail("target", target).
			WithSuggestion("Serve the site over HTTP to use remote fragment sources.")
	}

	rel := filepath.Clean(strings.TrimPrefix(strings.TrimPrefix(target, "."), "/"))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("fragment source %q escapes the site root", target), nil).
			WithDetail("target", target)
	}
	path := filepath.Join(f.root, rel)

	if info, err := os.Stat(path); err == nil && info.Size() > maxFragmentSize {
		return "", errors.New(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("fragment source exceeds %dMB: %s", maxFragmentSize>>20, target), nil).
			WithDetail("path", path).
			WithSuggestion("Split the section into smaller fragments.")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New(errors.ErrCodeFileNotFound,
				fmt.Sprintf("fragment source not found: %s", target), err).
				WithDetail("path", path).
				WithSuggestion("Check the content source path against the site's content directory.")
		}
		return "", errors.New(errors.ErrCodeFetchUnavailable,
			fmt.Sprintf("fragment source unreadable: %s", target), err).
			WithDetail("path", path)
	}
	if !utf8.Valid(data) {
		return "", errors.New(errors.ErrCodeFileCorrupt,
			fmt.Sprintf("fragment source is not valid UTF-8 text: %s", target), nil).
			WithDetail("path", path).
			WithSuggestion("Fragment sources must be HTML or Markdown text, not binary files.")
	}
	return string(data), nil
}

// deadlineOrDefault bounds a fetch with the configured timeout when the
// incoming context carries no earlier deadline.
func deadlineOrDefault(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if d, ok := ctx.Deadline(); ok && time.Until(d) < timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
