package resolver

import (
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFormatPrefersAudioOnResolutionTie(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 136, Height: 720, AudioChannels: 0, MimeType: `video/mp4; codecs="avc1.4d401f"`},
		{ItagNo: 22, Height: 720, AudioChannels: 2, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`},
		{ItagNo: 135, Height: 480, AudioChannels: 2, MimeType: `video/mp4; codecs="avc1.4d401e"`},
	}

	got := selectFormat(formats, "")
	require.NotNil(t, got)
	assert.Equal(t, 22, got.ItagNo)
}

func TestSelectFormatExplicitQuality(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 22, Height: 720, QualityLabel: "720p", AudioChannels: 2},
		{ItagNo: 18, Height: 360, QualityLabel: "360p", Quality: "medium", AudioChannels: 2},
	}

	byLabel := selectFormat(formats, "360p")
	require.NotNil(t, byLabel)
	assert.Equal(t, 18, byLabel.ItagNo)

	byQuality := selectFormat(formats, "medium")
	require.NotNil(t, byQuality)
	assert.Equal(t, 18, byQuality.ItagNo)

	byItag := selectFormat(formats, "18")
	require.NotNil(t, byItag)
	assert.Equal(t, 18, byItag.ItagNo)

	// Unknown quality falls through to best.
	fallback := selectFormat(formats, "4320p")
	require.NotNil(t, fallback)
	assert.Equal(t, 22, fallback.ItagNo)
}

func TestSelectFormatNoVideoVariants(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2},
	}
	assert.Nil(t, selectFormat(formats, ""))
	assert.Nil(t, selectFormat(youtube.FormatList{}, ""))
}

func TestResolutionOfFallbacks(t *testing.T) {
	assert.Equal(t, 1080, resolutionOf(&youtube.Format{Height: 1080}))
	assert.Equal(t, 720, resolutionOf(&youtube.Format{QualityLabel: "720p60"}))
	assert.Equal(t, 1080, resolutionOf(&youtube.Format{Quality: "hd1080"}))
	assert.Equal(t, 0, resolutionOf(&youtube.Format{Quality: "large"}))
}

func TestFormatMediaType(t *testing.T) {
	ct, ext := formatMediaType(&youtube.Format{MimeType: `video/mp4; codecs="avc1"`})
	assert.Equal(t, "video/mp4", ct)
	assert.Equal(t, "mp4", ext)

	ct, ext = formatMediaType(&youtube.Format{MimeType: `video/webm; codecs="vp9"`})
	assert.Equal(t, "video/webm", ct)
	assert.Equal(t, "webm", ext)

	ct, ext = formatMediaType(&youtube.Format{})
	assert.Equal(t, ContentTypeMP4, ct)
	assert.Equal(t, "mp4", ext)
}
