package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/clipfetch/clipfetch/internal/fetch"
)

const facebookHomeURL = "https://www.facebook.com/"

// Facebook resolves video URLs by regex-scanning the watch page HTML. The
// session cookies from a priming request against the home page are passed
// explicitly into the page fetch; their absence is not fatal.
type Facebook struct {
	client  *fetch.Client
	mode    DeliveryMode
	log     *zap.SugaredLogger
	homeURL string
}

// NewFacebook creates the resolver. The delivery mode (stream or redirect) is
// fixed per deployment by configuration.
func NewFacebook(client *fetch.Client, mode DeliveryMode, log *zap.SugaredLogger) *Facebook {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Facebook{
		client:  client,
		mode:    mode,
		log:     log.Named("resolver.facebook"),
		homeURL: facebookHomeURL,
	}
}

func (r *Facebook) Name() string { return "facebook" }

func (r *Facebook) Resolve(ctx context.Context, req Request) (*ResolvedMedia, error) {
	session, err := r.client.Prime(ctx, r.homeURL)
	if err != nil {
		r.log.Debugw("cookie priming failed, continuing without session", "error", err)
		session = nil
	}

	pageURL := normalizeFacebookURL(req.RawURL)
	page, err := r.client.Page(ctx, pageURL, session)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	videoURL, ok := runChain(r.log, page, facebookStrategies())
	if !ok {
		return nil, fmt.Errorf("%w: the video may be private, login-gated, age-restricted, or deleted, or the link is malformed", ErrVideoUnavailable)
	}

	title := metaContent(page, "og:title")
	label := title
	if label == "" {
		label = "facebook-video"
	}

	return &ResolvedMedia{
		SourceURL:   videoURL,
		ContentType: ContentTypeMP4,
		Filename:    SanitizeFilename(label, "mp4"),
		Title:       title,
		Thumbnail:   metaContent(page, "og:image"),
		Mode:        r.mode,
		Size:        -1,
	}, nil
}

var watchIDPattern = regexp.MustCompile(`watch/?\?v=(\d+)`)

// normalizeFacebookURL rewrites watch?v=<id> links to the canonical video
// page URL; everything else passes through unchanged.
func normalizeFacebookURL(rawURL string) string {
	if m := watchIDPattern.FindStringSubmatch(rawURL); m != nil {
		return "https://www.facebook.com/watch/?v=" + m[1]
	}
	return rawURL
}

// The ordered extraction patterns, newest page format first. Each is tried
// against the whole page; the first match wins.
var facebookPatterns = []struct {
	id string
	re *regexp.Regexp
}{
	{"hd-playable", regexp.MustCompile(`"playable_url_quality_hd"\s*:\s*"([^"]+)"`)},
	{"sd-playable", regexp.MustCompile(`"playable_url"\s*:\s*"([^"]+)"`)},
	{"native-hd", regexp.MustCompile(`"browser_native_hd_url"\s*:\s*"([^"]+)"`)},
	{"native-sd", regexp.MustCompile(`"browser_native_sd_url"\s*:\s*"([^"]+)"`)},
	{"legacy-hd", regexp.MustCompile(`hd_src\s*:\s*"([^"]+)"`)},
	{"legacy-sd", regexp.MustCompile(`sd_src\s*:\s*"([^"]+)"`)},
	{"video-url", regexp.MustCompile(`"video_url"\s*:\s*"([^"]+)"`)},
}

func facebookStrategies() []Strategy {
	strategies := make([]Strategy, 0, len(facebookPatterns)+1)
	for _, p := range facebookPatterns {
		re := p.re
		strategies = append(strategies, Strategy{
			ID: p.id,
			Run: func(page []byte) Outcome {
				if m := re.FindSubmatch(page); m != nil {
					return Found(unescapeJSONString(string(m[1])))
				}
				return NotFound()
			},
		})
	}
	strategies = append(strategies, Strategy{ID: "script-scan", Run: scanScriptBlocks})
	return strategies
}

var scriptBlockPattern = regexp.MustCompile(`(?s)<script[^>]*>(.*?)</script>`)

// scanScriptBlocks is the secondary pass: locate any inline script that
// mentions a playable URL and re-apply the playable patterns locally.
func scanScriptBlocks(page []byte) Outcome {
	for _, block := range scriptBlockPattern.FindAllSubmatch(page, -1) {
		body := block[1]
		if !strings.Contains(string(body), "playable_url") {
			continue
		}
		for _, p := range facebookPatterns[:2] {
			if m := p.re.FindSubmatch(body); m != nil {
				return Found(unescapeJSONString(string(m[1])))
			}
		}
	}
	return NotFound()
}

// unescapeJSONString undoes the backslash escaping of a URL captured out of
// raw page JSON (\/ and \uXXXX sequences).
func unescapeJSONString(s string) string {
	if unquoted, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return unquoted
	}
	return strings.ReplaceAll(s, `\/`, "/")
}
