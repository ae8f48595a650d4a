package staging

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// StaticReferencePath is the URL path under which the reference image
// directory is served by the public deployment.
const StaticReferencePath = "/example-rooms/"

// ReachabilityPolicy turns a deterministic selection of reference files into
// URLs the generation capability can fetch. The choice of policy depends on
// whether the current deployment is itself reachable from the capability.
type ReachabilityPolicy interface {
	Resolve(ctx context.Context, dir string, files []string) ([]string, error)
}

// DirectURLPolicy builds reference URLs from a publicly reachable origin and
// the static path the directory is served under. No bytes are moved.
type DirectURLPolicy struct {
	Origin string
}

// Resolve returns origin-relative URLs for the selected files.
func (p DirectURLPolicy) Resolve(_ context.Context, _ string, files []string) ([]string, error) {
	origin := strings.TrimRight(p.Origin, "/")
	urls := make([]string, len(files))
	for i, f := range files {
		urls[i] = origin + StaticReferencePath + url.PathEscape(f)
	}
	return urls, nil
}

// UploadAndURLPolicy reads each selected file from disk and uploads it to
// object storage, because the capability cannot fetch URLs that point at a
// loopback origin. Uploads run concurrently; all must succeed.
type UploadAndURLPolicy struct {
	Uploader Uploader
}

// Resolve uploads every selected file and returns the storage URLs in the
// same order as files.
func (p UploadAndURLPolicy) Resolve(ctx context.Context, dir string, files []string) ([]string, error) {
	if p.Uploader == nil {
		return nil, fmt.Errorf("staging: no uploader configured for loopback references")
	}
	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(dir, f))
			if err != nil {
				return fmt.Errorf("staging: read reference %s: %w", f, err)
			}
			u, err := p.Uploader.Upload(gctx, data, MIMEForExt(filepath.Ext(f)), f)
			if err != nil {
				return fmt.Errorf("staging: upload reference %s: %w", f, err)
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// ReferenceResolver selects up to MaxCount reference images from Dir in a
// stable order and hands them to a ReachabilityPolicy.
type ReferenceResolver struct {
	Dir      string
	MaxCount int
}

// Select lists the reference directory and returns the chosen file names:
// image extensions only, sorted, truncated to MaxCount. The same directory
// contents always yield the same subset. An unreadable directory yields an
// empty selection and no error, since staging can proceed without style
// references.
func (r ReferenceResolver) Select() []string {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	limit := r.MaxCount
	if limit < 0 {
		limit = 0
	}
	if len(files) > limit {
		files = files[:limit]
	}
	return files
}

// Resolve selects reference files and resolves them to fetchable URLs via
// policy.
func (r ReferenceResolver) Resolve(ctx context.Context, policy ReachabilityPolicy) ([]string, error) {
	files := r.Select()
	if len(files) == 0 {
		return nil, nil
	}
	return policy.Resolve(ctx, r.Dir, files)
}

// IsLoopbackOrigin reports whether the origin's host is a loopback address,
// in which case external services cannot fetch URLs built from it.
func IsLoopbackOrigin(origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// PolicyForOrigin picks the reachability policy for a request origin:
// loopback origins upload reference bytes to storage, public origins hand out
// direct URLs.
func PolicyForOrigin(origin string, uploader Uploader) ReachabilityPolicy {
	if IsLoopbackOrigin(origin) {
		return UploadAndURLPolicy{Uploader: uploader}
	}
	return DirectURLPolicy{Origin: origin}
}
