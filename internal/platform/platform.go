package platform

import (
	"errors"
	"regexp"
	"strings"
)

// Kind identifies which platform (and sub-kind of content) a URL belongs to.
type Kind string

const (
	KindYouTube          Kind = "youtube"
	KindInstagramReel    Kind = "reel"
	KindInstagramPost    Kind = "post"
	KindInstagramProfile Kind = "profile"
	KindFacebook         Kind = "facebook"
	KindUnsupported      Kind = "unsupported"
)

func (k Kind) String() string { return string(k) }

// IsInstagram reports whether the kind is one of the Instagram sub-kinds.
func (k Kind) IsInstagram() bool {
	return k == KindInstagramReel || k == KindInstagramPost || k == KindInstagramProfile
}

var (
	// ErrUnsupportedPlatform indicates the URL belongs to none of the supported platforms.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrInvalidVideoID indicates a YouTube URL whose video ID could not be extracted.
	ErrInvalidVideoID = errors.New("invalid youtube video id")
)

// Classification is the result of classifying a raw URL.
type Classification struct {
	Kind Kind

	// VideoID is set for YouTube URLs (always 11 characters).
	VideoID string

	// Username is set for Instagram profile URLs.
	Username string
}

// youtubeIDPattern matches the ID capture group across the common YouTube URL
// shapes: youtu.be/<id>, /v/<id>, /u/<c>/<id>, embed/<id>, watch?v=<id>.
var youtubeIDPattern = regexp.MustCompile(`(?:youtu\.be/|/v/|/u/\w/|embed/|watch\?v=|[?&]v=)([^#&?/]+)`)

// ExtractYouTubeVideoID pulls the 11-character video ID out of a YouTube URL.
// Returns an empty string if no valid ID is present.
func ExtractYouTubeVideoID(rawURL string) string {
	m := youtubeIDPattern.FindStringSubmatch(rawURL)
	if len(m) != 2 {
		return ""
	}
	if len(m[1]) != 11 {
		return ""
	}
	return m[1]
}

// Classify determines the platform and sub-kind for a raw user-supplied URL.
// Matching is by literal substring, mirroring what each platform accepts in
// practice; anything unrecognized fails with ErrUnsupportedPlatform.
func Classify(rawURL string) (Classification, error) {
	switch {
	case strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be"):
		id := ExtractYouTubeVideoID(rawURL)
		if id == "" {
			return Classification{Kind: KindUnsupported}, ErrInvalidVideoID
		}
		return Classification{Kind: KindYouTube, VideoID: id}, nil

	case strings.Contains(rawURL, "instagram.com"):
		switch {
		case strings.Contains(rawURL, "/reel/"):
			return Classification{Kind: KindInstagramReel}, nil
		case strings.Contains(rawURL, "/p/"):
			return Classification{Kind: KindInstagramPost}, nil
		default:
			return Classification{Kind: KindInstagramProfile, Username: instagramUsername(rawURL)}, nil
		}

	case strings.Contains(rawURL, "facebook.com") || strings.Contains(rawURL, "fb.com"):
		return Classification{Kind: KindFacebook}, nil
	}

	return Classification{Kind: KindUnsupported}, ErrUnsupportedPlatform
}

// instagramUsername parses the path segment following "instagram.com/".
func instagramUsername(rawURL string) string {
	_, rest, ok := strings.Cut(rawURL, "instagram.com/")
	if !ok {
		return "user"
	}
	rest, _, _ = strings.Cut(rest, "?")
	seg, _, _ := strings.Cut(rest, "/")
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return "user"
	}
	return seg
}
