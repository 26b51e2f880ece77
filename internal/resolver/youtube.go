package resolver

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

// YouTube resolves watch URLs via the innertube metadata API and hands back a
// pre-opened stream for the selected variant.
type YouTube struct {
	client youtube.Client
	log    *zap.SugaredLogger
}

func NewYouTube(log *zap.SugaredLogger) *YouTube {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &YouTube{log: log.Named("resolver.youtube")}
}

func (y *YouTube) Name() string { return "youtube" }

func (y *YouTube) Resolve(ctx context.Context, req Request) (*ResolvedMedia, error) {
	// The metadata client applies its own, stricter URL acceptance rule than
	// the classifier's substring regex.
	id, err := youtube.ExtractVideoID(req.RawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	video, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	format := selectFormat(video.Formats, req.Quality)
	if format == nil {
		return nil, fmt.Errorf("%w: video %s has no usable variant", ErrNoFormatAvailable, id)
	}

	stream, size, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	contentType, ext := formatMediaType(format)
	y.log.Debugw("selected youtube variant",
		"video", id, "itag", format.ItagNo, "quality", format.QualityLabel, "type", contentType)

	return &ResolvedMedia{
		SourceURL:   format.URL,
		ContentType: contentType,
		Filename:    SanitizeFilename(video.Title, ext),
		Title:       video.Title,
		Thumbnail:   bestThumbnail(video.Thumbnails),
		Mode:        ModeStream,
		Body:        stream,
		Size:        size,
	}, nil
}

// selectFormat picks the variant to serve. An explicit quality request is
// matched exactly against the quality label, the quality tag, and the itag
// number; otherwise video-carrying variants are ranked by resolution, then
// audio presence, then an explicit container format.
func selectFormat(formats youtube.FormatList, quality string) *youtube.Format {
	if quality != "" && quality != "best" {
		for i := range formats {
			f := &formats[i]
			if f.QualityLabel == quality || f.Quality == quality || strconv.Itoa(f.ItagNo) == quality {
				return f
			}
		}
	}

	var candidates []*youtube.Format
	for i := range formats {
		f := &formats[i]
		if carriesVideo(f) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := resolutionOf(candidates[i]), resolutionOf(candidates[j])
		if ri != rj {
			return ri > rj
		}
		ai, aj := candidates[i].AudioChannels > 0, candidates[j].AudioChannels > 0
		if ai != aj {
			return ai
		}
		ci, cj := candidates[i].MimeType != "", candidates[j].MimeType != ""
		if ci != cj {
			return ci
		}
		return false
	})
	return candidates[0]
}

func carriesVideo(f *youtube.Format) bool {
	return f.Height > 0 || f.QualityLabel != "" || strings.HasPrefix(f.MimeType, "video/")
}

var digitsPattern = regexp.MustCompile(`\d+`)

// resolutionOf parses a comparable resolution number: the explicit height,
// else the digit run in the quality label (e.g. "720p60"), else the digit run
// in the generic quality string, else 0.
func resolutionOf(f *youtube.Format) int {
	if f.Height > 0 {
		return f.Height
	}
	if m := digitsPattern.FindString(f.QualityLabel); m != "" {
		n, _ := strconv.Atoi(m)
		return n
	}
	if m := digitsPattern.FindString(f.Quality); m != "" {
		n, _ := strconv.Atoi(m)
		return n
	}
	return 0
}

// formatMediaType derives the content type and filename extension from the
// variant's declared media type, defaulting to video/mp4.
func formatMediaType(f *youtube.Format) (contentType, ext string) {
	mediaType, _, _ := strings.Cut(f.MimeType, ";")
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ContentTypeMP4, "mp4"
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return mediaType, sub
	}
	return ContentTypeMP4, "mp4"
}

func bestThumbnail(thumbs youtube.Thumbnails) string {
	best := ""
	var bestWidth uint
	for _, t := range thumbs {
		if t.URL != "" && t.Width >= bestWidth {
			best = t.URL
			bestWidth = t.Width
		}
	}
	return best
}
