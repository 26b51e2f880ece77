package resolver

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipfetch/clipfetch/internal/platform"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		ext     string
		pattern string
	}{
		{
			name:    "title with punctuation",
			title:   "My Video! #1 (HD)",
			ext:     "mp4",
			pattern: `^my-video-1-hd-\d+\.mp4$`,
		},
		{
			name:    "already clean",
			title:   "holiday",
			ext:     "jpg",
			pattern: `^holiday-\d+\.jpg$`,
		},
		{
			name:    "long title truncated to 50 chars",
			title:   "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			ext:     "mp4",
			pattern: `^a{50}-\d+\.mp4$`,
		},
		{
			name:    "only punctuation falls back to media",
			title:   "???!!!",
			ext:     "mp4",
			pattern: `^media-\d+\.mp4$`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.title, tt.ext)
			assert.Regexp(t, regexp.MustCompile(tt.pattern), got)
		})
	}
}

func TestContentTypeForURL(t *testing.T) {
	assert.Equal(t, ContentTypeMP4, ContentTypeForURL("https://cdn.example.com/clip.mp4?x=1"))
	assert.Equal(t, ContentTypeMP4, ContentTypeForURL("https://cdn.example.com/video/12345"))
	assert.Equal(t, ContentTypeJPEG, ContentTypeForURL("https://cdn.example.com/photo.jpg"))
	assert.Equal(t, ContentTypeJPEG, ContentTypeForURL("https://cdn.example.com/display"))
}

func TestFromMediaURL(t *testing.T) {
	m := FromMediaURL("https://cdn.example.com/clip.mp4", "reel")
	require.NotNil(t, m)
	assert.Equal(t, ContentTypeMP4, m.ContentType)
	assert.Equal(t, ModeStream, m.Mode)
	assert.Regexp(t, `^reel-\d+\.mp4$`, m.Filename)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	yt := NewYouTube(nil)
	reg.Add(yt, platform.KindYouTube)

	assert.Equal(t, yt, reg.For(platform.KindYouTube))
	assert.Nil(t, reg.For(platform.KindFacebook))
}
