package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipfetch/clipfetch/internal/fetch"
	"github.com/clipfetch/clipfetch/internal/platform"
)

// newFacebookFixture serves a home page (with cookies) and a video page, and
// counts every other request so tests can assert that no media URL was
// fetched.
func newFacebookFixture(t *testing.T, videoHTML string) (*Facebook, *httptest.Server, *atomic.Int64) {
	t.Helper()
	var extraFetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "datr=abc123; Path=/; Secure")
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/video", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(videoHTML))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		extraFetches.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	r := NewFacebook(fetch.NewClient(0, nil), ModeRedirect, nil)
	r.homeURL = ts.URL + "/home"
	return r, ts, &extraFetches
}

func TestFacebookHDPlayableWins(t *testing.T) {
	html := `<html><body><script>
	{"playable_url":"https:\/\/video.example.com\/sd.mp4","playable_url_quality_hd":"https:\/\/video.example.com\/hd.mp4"}
	</script></body></html>`
	r, ts, _ := newFacebookFixture(t, html)

	media, err := r.Resolve(context.Background(), Request{RawURL: ts.URL + "/video", Kind: platform.KindFacebook})
	require.NoError(t, err)
	assert.Equal(t, "https://video.example.com/hd.mp4", media.SourceURL)
	assert.Equal(t, ContentTypeMP4, media.ContentType)
	assert.Equal(t, ModeRedirect, media.Mode)
}

func TestFacebookLegacySourceFallback(t *testing.T) {
	html := `<html><body><script>videoData:[{sd_src:"https:\/\/video.example.com\/legacy_sd.mp4"}]</script></body></html>`
	r, ts, _ := newFacebookFixture(t, html)

	media, err := r.Resolve(context.Background(), Request{RawURL: ts.URL + "/video", Kind: platform.KindFacebook})
	require.NoError(t, err)
	assert.Equal(t, "https://video.example.com/legacy_sd.mp4", media.SourceURL)
}

// When none of the extraction patterns match, resolution fails without ever
// fetching a media URL.
func TestFacebookUnavailable(t *testing.T) {
	r, ts, extraFetches := newFacebookFixture(t, `<html><body>You must log in to continue.</body></html>`)

	_, err := r.Resolve(context.Background(), Request{RawURL: ts.URL + "/video", Kind: platform.KindFacebook})
	require.ErrorIs(t, err, ErrVideoUnavailable)
	assert.Equal(t, int64(0), extraFetches.Load())
}

func TestNormalizeFacebookURL(t *testing.T) {
	assert.Equal(t,
		"https://www.facebook.com/watch/?v=123456789",
		normalizeFacebookURL("https://www.facebook.com/watch?v=123456789"))
	assert.Equal(t,
		"https://www.facebook.com/watch/?v=123456789",
		normalizeFacebookURL("https://fb.com/watch/?v=123456789"))
	assert.Equal(t,
		"https://www.facebook.com/somepage/videos/42/",
		normalizeFacebookURL("https://www.facebook.com/somepage/videos/42/"))
}

func TestScanScriptBlocks(t *testing.T) {
	page := []byte(`<html>
<script>var unrelated = 1;</script>
<script>requireLazy({"playable_url":"https:\/\/video.example.com\/inline.mp4"});</script>
</html>`)

	out := scanScriptBlocks(page)
	require.Equal(t, OutcomeFound, out.Kind)
	assert.Equal(t, "https://video.example.com/inline.mp4", out.URL)
}

func TestUnescapeJSONString(t *testing.T) {
	assert.Equal(t, "https://v.example.com/a.mp4", unescapeJSONString(`https:\/\/v.example.com\/a.mp4`))
	assert.Equal(t, "https://v.example.com/a.mp4?x=1&y=2", unescapeJSONString(`https:\/\/v.example.com\/a.mp4?x=1&y=2`))
}
