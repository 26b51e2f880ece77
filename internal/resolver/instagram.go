package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/platform"
)

// Instagram resolves reel, post and profile URLs by scraping the page HTML.
// Three strategies run in order: the legacy _sharedData payload, the JSON-LD
// script block, and finally the og: meta tags.
type Instagram struct {
	client *fetch.Client
	log    *zap.SugaredLogger
}

func NewInstagram(client *fetch.Client, log *zap.SugaredLogger) *Instagram {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Instagram{client: client, log: log.Named("resolver.instagram")}
}

func (r *Instagram) Name() string { return "instagram" }

func (r *Instagram) Resolve(ctx context.Context, req Request) (*ResolvedMedia, error) {
	page, err := r.client.Page(ctx, req.RawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	kind := req.Kind
	mediaURL, ok := runChain(r.log, page, []Strategy{
		{ID: "shared-data", Run: func(p []byte) Outcome { return extractSharedData(p, kind) }},
		{ID: "json-ld", Run: func(p []byte) Outcome { return extractJSONLD(p, kind) }},
		{ID: "og-meta", Run: func(p []byte) Outcome { return extractOGMeta(p, kind) }},
	})
	if !ok {
		return nil, fmt.Errorf("%w: no media in instagram %s page", ErrMediaNotFound, kind)
	}

	// Media kind is inferred post-hoc from the resolved URL: posts can carry
	// either an image or a video and the winning strategy does not say which.
	contentType := ContentTypeForURL(mediaURL)
	if kind == platform.KindInstagramReel {
		contentType = ContentTypeMP4
	}
	if kind == platform.KindInstagramProfile {
		contentType = ContentTypeJPEG
	}

	title := metaContent(page, "og:title")
	label := title
	if label == "" {
		label = kind.String()
		if req.Username != "" {
			label = req.Username
		}
	}

	mode := ModeStream
	if contentType == ContentTypeJPEG {
		// Images are small and repeat-requested; park them in the cache.
		mode = ModeCachedFile
	}

	return &ResolvedMedia{
		SourceURL:   mediaURL,
		ContentType: contentType,
		Filename:    SanitizeFilename(label, ExtensionFor(contentType)),
		Title:       title,
		Thumbnail:   metaContent(page, "og:image"),
		Mode:        mode,
		Size:        -1,
	}, nil
}

var sharedDataPattern = regexp.MustCompile(`(?s)window\._sharedData\s*=\s*(\{.*?\})\s*;\s*</script>`)

type sharedData struct {
	EntryData struct {
		PostPage []struct {
			Graphql struct {
				ShortcodeMedia struct {
					IsVideo    bool   `json:"is_video"`
					VideoURL   string `json:"video_url"`
					DisplayURL string `json:"display_url"`
				} `json:"shortcode_media"`
			} `json:"graphql"`
		} `json:"PostPage"`
		ProfilePage []struct {
			Graphql struct {
				User struct {
					ProfilePicURLHD string `json:"profile_pic_url_hd"`
					ProfilePicURL   string `json:"profile_pic_url"`
				} `json:"user"`
			} `json:"graphql"`
		} `json:"ProfilePage"`
	} `json:"entry_data"`
}

// extractSharedData navigates the legacy window._sharedData payload.
func extractSharedData(page []byte, kind platform.Kind) Outcome {
	m := sharedDataPattern.FindSubmatch(page)
	if m == nil {
		return NotFound()
	}

	var data sharedData
	if err := json.Unmarshal(m[1], &data); err != nil {
		return ParseError(fmt.Errorf("shared data: %w", err))
	}

	if kind == platform.KindInstagramProfile {
		if len(data.EntryData.ProfilePage) == 0 {
			return NotFound()
		}
		user := data.EntryData.ProfilePage[0].Graphql.User
		if user.ProfilePicURLHD != "" {
			return Found(user.ProfilePicURLHD)
		}
		if user.ProfilePicURL != "" {
			return Found(user.ProfilePicURL)
		}
		return NotFound()
	}

	if len(data.EntryData.PostPage) == 0 {
		return NotFound()
	}
	media := data.EntryData.PostPage[0].Graphql.ShortcodeMedia
	if kind == platform.KindInstagramReel || media.IsVideo {
		if media.VideoURL != "" {
			return Found(media.VideoURL)
		}
		return NotFound()
	}
	if media.DisplayURL != "" {
		return Found(media.DisplayURL)
	}
	return NotFound()
}

var jsonLDPattern = regexp.MustCompile(`(?s)<script[^>]*type="application/ld\+json"[^>]*>(.*?)</script>`)

type jsonLDDocument struct {
	Video json.RawMessage `json:"video"`
	Image json.RawMessage `json:"image"`
}

// extractJSONLD falls back to the structured-data script block: the video
// contentUrl when present, else the first image. Both fields come in
// single-object and array shapes.
func extractJSONLD(page []byte, _ platform.Kind) Outcome {
	m := jsonLDPattern.FindSubmatch(page)
	if m == nil {
		return NotFound()
	}

	var doc jsonLDDocument
	if err := json.Unmarshal(m[1], &doc); err != nil {
		return ParseError(fmt.Errorf("json-ld: %w", err))
	}

	if url := jsonLDVideoURL(doc.Video); url != "" {
		return Found(url)
	}
	if url := jsonLDImageURL(doc.Image); url != "" {
		return Found(url)
	}
	return NotFound()
}

type jsonLDVideo struct {
	ContentURL string `json:"contentUrl"`
}

func jsonLDVideoURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var one jsonLDVideo
	if err := json.Unmarshal(raw, &one); err == nil && one.ContentURL != "" {
		return one.ContentURL
	}
	var many []jsonLDVideo
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0].ContentURL
	}
	return ""
}

func jsonLDImageURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

// extractOGMeta is the last resort: plain og: meta tags.
func extractOGMeta(page []byte, kind platform.Kind) Outcome {
	property := "og:image"
	if kind == platform.KindInstagramReel {
		property = "og:video"
	}
	if url := metaContent(page, property); url != "" {
		return Found(url)
	}
	return NotFound()
}

// metaContent pulls the content attribute of a meta tag, tolerating either
// attribute order.
func metaContent(page []byte, property string) string {
	quoted := regexp.QuoteMeta(property)
	re := regexp.MustCompile(`<meta[^>]+property="` + quoted + `"[^>]+content="([^"]*)"`)
	if m := re.FindSubmatch(page); m != nil {
		return string(m[1])
	}
	re = regexp.MustCompile(`<meta[^>]+content="([^"]*)"[^>]+property="` + quoted + `"`)
	if m := re.FindSubmatch(page); m != nil {
		return string(m[1])
	}
	return ""
}
