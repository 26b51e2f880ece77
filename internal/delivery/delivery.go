// Package delivery moves resolved media to the client: a proxied stream, an
// HTTP redirect, or a cache-backed file keyed by a digest of the original
// request URL.
package delivery

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/resolver"
)

// Key derives the cache key for a raw request URL. It is a pure function, so
// identical requests always address the same cache slot.
func Key(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Pipeline delivers resolved media. Concurrent identical cached-file requests
// collapse into a single upstream fetch via the in-flight group.
type Pipeline struct {
	cacheDir string
	client   *fetch.Client
	group    singleflight.Group
	log      *zap.SugaredLogger
}

func New(cacheDir string, client *fetch.Client, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{
		cacheDir: cacheDir,
		client:   client,
		log:      log.Named("delivery"),
	}
}

// Serve writes the resolved media to the HTTP response according to its
// delivery mode. rawURL is the original request URL and keys the cache.
func (p *Pipeline) Serve(w http.ResponseWriter, r *http.Request, media *resolver.ResolvedMedia, rawURL string) error {
	switch media.Mode {
	case resolver.ModeRedirect:
		http.Redirect(w, r, media.SourceURL, http.StatusFound)
		return nil

	case resolver.ModeCachedFile:
		path, err := p.Materialize(r.Context(), rawURL, media)
		if err != nil {
			return err
		}
		attachmentHeaders(w, media)
		http.ServeFile(w, r, path)
		return nil

	default:
		return p.stream(w, r, media)
	}
}

// stream pipes the upstream bytes straight through without buffering the
// whole payload. The client pulling slowly slows the upstream read; a client
// disconnect cancels the upstream fetch through the request context.
func (p *Pipeline) stream(w http.ResponseWriter, r *http.Request, media *resolver.ResolvedMedia) error {
	body := media.Body
	size := media.Size
	if body == nil {
		var err error
		body, size, err = p.client.Open(r.Context(), media.SourceURL)
		if err != nil {
			return fmt.Errorf("%w: %v", resolver.ErrUpstreamFetch, err)
		}
	}
	defer body.Close()

	attachmentHeaders(w, media)
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}

	written, err := io.Copy(w, body)
	if err != nil {
		// Headers are already gone, so nothing useful can be sent to the
		// client; abort rather than pretend the partial body was complete.
		p.log.Warnw("stream aborted", "written", written, "error", err)
		return fmt.Errorf("%w: stream interrupted after %d bytes", resolver.ErrUpstreamFetch, written)
	}
	return nil
}

// Materialize ensures the media bytes exist in the cache and returns the file
// path. Repeated calls for the same rawURL fetch upstream at most once; the
// in-flight group additionally collapses concurrent duplicates.
func (p *Pipeline) Materialize(ctx context.Context, rawURL string, media *resolver.ResolvedMedia) (string, error) {
	key := Key(rawURL)
	path := filepath.Join(p.cacheDir, key+"."+resolver.ExtensionFor(media.ContentType))

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			p.log.Debugw("cache hit", "key", key)
			return path, nil
		}
		if err := p.fill(ctx, path, media.SourceURL); err != nil {
			return nil, err
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fill downloads the source into the cache slot. The bytes land in a .part
// file first and only a verified, non-empty write gets renamed into place, so
// a torn download never looks like a complete cache entry.
func (p *Pipeline) fill(ctx context.Context, path, sourceURL string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", resolver.ErrWriteFailed, err)
	}

	body, _, err := p.client.Open(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("%w: %v", resolver.ErrUpstreamFetch, err)
	}
	defer body.Close()

	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("%w: %v", resolver.ErrWriteFailed, err)
	}

	written, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return fmt.Errorf("%w: %v", resolver.ErrWriteFailed, err)
	}
	if written == 0 {
		os.Remove(part)
		return fmt.Errorf("%w: upstream returned an empty body", resolver.ErrUpstreamFetch)
	}

	if err := os.Rename(part, path); err != nil {
		os.Remove(part)
		return fmt.Errorf("%w: %v", resolver.ErrWriteFailed, err)
	}
	p.log.Infow("cached media", "path", path, "bytes", written)
	return nil
}

// SaveTo downloads the resolved media to an explicit file path (CLI use).
// Redirect-mode media is downloaded the same way a stream would be.
func (p *Pipeline) SaveTo(ctx context.Context, media *resolver.ResolvedMedia, outPath string) error {
	body := media.Body
	if body == nil {
		var err error
		body, _, err = p.client.Open(ctx, media.SourceURL)
		if err != nil {
			return fmt.Errorf("%w: %v", resolver.ErrUpstreamFetch, err)
		}
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", resolver.ErrWriteFailed, err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("%w: %v", resolver.ErrWriteFailed, err)
	}

	_, err = io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(outPath)
		return fmt.Errorf("%w: %v", resolver.ErrWriteFailed, err)
	}
	return nil
}

func attachmentHeaders(w http.ResponseWriter, media *resolver.ResolvedMedia) {
	w.Header().Set("Content-Type", media.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, media.Filename))
}
