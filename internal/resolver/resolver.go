// Package resolver converts classified platform URLs into directly fetchable
// media locators. Each platform has one Resolver; the scraping ones run an
// ordered fallback chain of extraction strategies (see chain.go).
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/platform"
)

// Error taxonomy. Every resolution failure wraps one of these so the request
// boundary can map it to an HTTP status and a human-readable message.
var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrNoFormatAvailable   = errors.New("no format available")
	ErrMediaNotFound       = errors.New("media not found")
	ErrVideoUnavailable    = errors.New("video unavailable")
	ErrUpstreamFetch       = errors.New("upstream fetch failed")
	ErrWriteFailed         = errors.New("write failed")
)

// Content types the delivery pipeline accepts.
const (
	ContentTypeMP4  = "video/mp4"
	ContentTypeJPEG = "image/jpeg"
)

// DeliveryMode describes how resolved media reaches the client.
type DeliveryMode int

const (
	// ModeStream proxies the upstream bytes through the handler.
	ModeStream DeliveryMode = iota
	// ModeRedirect sends the client straight to the upstream URL.
	ModeRedirect
	// ModeCachedFile persists the bytes to the on-disk cache, then serves them.
	ModeCachedFile
)

func (m DeliveryMode) String() string {
	switch m {
	case ModeRedirect:
		return "redirect"
	case ModeCachedFile:
		return "cached"
	default:
		return "stream"
	}
}

// Request is the immutable input of a single resolution.
type Request struct {
	RawURL string
	// Quality is an optional platform-specific format identifier (YouTube).
	Quality string
	// MediaURL, when set, is a pre-resolved direct media URL that bypasses
	// platform extraction entirely.
	MediaURL string

	Kind platform.Kind

	// VideoID and Username carry over from classification.
	VideoID  string
	Username string
}

// ResolvedMedia is a directly fetchable media locator plus the metadata the
// delivery pipeline and response envelope need.
type ResolvedMedia struct {
	// SourceURL is an absolute, fetchable URL (unless Body is pre-opened).
	SourceURL   string
	ContentType string
	Filename    string
	Title       string
	Thumbnail   string
	Mode        DeliveryMode

	// Body is an optional already-opened upstream stream (YouTube). When set,
	// delivery consumes it instead of fetching SourceURL. Size is the declared
	// length, or -1 when unknown.
	Body io.ReadCloser
	Size int64
}

// Resolver turns a classified request into resolved media.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, req Request) (*ResolvedMedia, error)
}

// Registry selects the resolver for a platform kind.
type Registry struct {
	byKind map[platform.Kind]Resolver
}

// NewRegistry builds a registry from the given resolvers. Each resolver is
// registered for the kinds it reports via a Kinds() method when present,
// otherwise explicitly with Add.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[platform.Kind]Resolver)}
}

// Add registers a resolver for one or more kinds.
func (r *Registry) Add(res Resolver, kinds ...platform.Kind) {
	for _, k := range kinds {
		r.byKind[k] = res
	}
}

// For returns the resolver registered for the kind, or nil.
func (r *Registry) For(kind platform.Kind) Resolver {
	return r.byKind[kind]
}

// BuildRegistry wires the standard resolver set: YouTube, the three Instagram
// kinds, and Facebook with the given delivery mode.
func BuildRegistry(client *fetch.Client, facebookMode DeliveryMode, log *zap.SugaredLogger) *Registry {
	reg := NewRegistry()
	reg.Add(NewYouTube(log), platform.KindYouTube)
	reg.Add(NewInstagram(client, log),
		platform.KindInstagramReel, platform.KindInstagramPost, platform.KindInstagramProfile)
	reg.Add(NewFacebook(client, facebookMode, log), platform.KindFacebook)
	return reg
}

var nonAlnumPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SanitizeFilename builds an attachment filename from a media title: runs of
// non-alphanumeric characters collapse into single dashes, the result is
// lower-cased and truncated to 50 characters, and a unix timestamp suffix
// keeps repeated downloads distinct.
func SanitizeFilename(title, ext string) string {
	name := nonAlnumPattern.ReplaceAllString(title, "-")
	name = strings.Trim(name, "-")
	name = strings.ToLower(name)
	if len(name) > 50 {
		name = strings.Trim(name[:50], "-")
	}
	if name == "" {
		name = "media"
	}
	return fmt.Sprintf("%s-%d.%s", name, time.Now().Unix(), ext)
}

// ExtensionFor maps a whitelisted content type to a file extension.
func ExtensionFor(contentType string) string {
	if contentType == ContentTypeJPEG {
		return "jpg"
	}
	return "mp4"
}

// ContentTypeForURL infers a whitelisted content type from a media URL.
// A ".mp4" extension or a "/video/" path segment means video.
func ContentTypeForURL(mediaURL string) string {
	lower := strings.ToLower(mediaURL)
	if strings.Contains(lower, ".mp4") || strings.Contains(lower, "/video/") {
		return ContentTypeMP4
	}
	return ContentTypeJPEG
}

// FromMediaURL synthesizes resolved media for a pre-resolved direct URL,
// skipping platform extraction. The label (usually the request type) seeds
// the filename.
func FromMediaURL(mediaURL, label string) *ResolvedMedia {
	ct := ContentTypeForURL(mediaURL)
	return &ResolvedMedia{
		SourceURL:   mediaURL,
		ContentType: ct,
		Filename:    SanitizeFilename(label, ExtensionFor(ct)),
		Mode:        ModeStream,
		Size:        -1,
	}
}
