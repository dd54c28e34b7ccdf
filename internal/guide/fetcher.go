package guide

import (
	"context"
	"net/http"
	"strings"

	"github.com/dubedition/guidecore/internal/fragment"
)

// siteFetcher is the default fetcher for a local guide tree: remote
// sources go over HTTP, everything else is read from the site directory.
type siteFetcher struct {
	local  *fragment.FileFetcher
	remote *fragment.HTTPFetcher
}

// newSiteFetcher builds the dispatch fetcher. When the content base path
// is itself a URL it anchors site-relative HTTP requests.
func newSiteFetcher(root string, client *http.Client, basePath string) *siteFetcher {
	baseURL := ""
	if isRemote(basePath) {
		baseURL = basePath
	}
	return &siteFetcher{
		local:  fragment.NewFileFetcher(root),
		remote: fragment.NewHTTPFetcher(client, baseURL),
	}
}

// Fetch routes the resolved target to the HTTP or file fetcher.
func (f *siteFetcher) Fetch(ctx context.Context, target string) (string, error) {
	if isRemote(target) {
		return f.remote.Fetch(ctx, target)
	}
	return f.local.Fetch(ctx, target)
}

// isRemote reports whether the target must be fetched over HTTP.
func isRemote(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "//")
}

var _ fragment.Fetcher = (*siteFetcher)(nil)
