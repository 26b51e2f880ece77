package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipfetch/clipfetch/internal/config"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.CacheDir = t.TempDir()
	return New(cfg, 0, nil)
}

func doRequest(t *testing.T, s *Server, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(t, s, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestResolveRejectsMissingURL(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(t, s, "/api/resolve", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "missing url")
}

func TestResolveRejectsUnsupportedPlatform(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(t, s, "/api/resolve?url="+url.QueryEscape("https://vimeo.com/12345"), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "unsupported")
}

func TestResolveRejectsYouTubeWithoutVideoID(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(t, s, "/api/resolve?url="+url.QueryEscape("https://www.youtube.com/feed/library"), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadMediaURLBypass(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("direct-bytes"))
	}))
	defer upstream.Close()

	s := newTestServer(t, nil)
	target := "/api/download?media_url=" + url.QueryEscape(upstream.URL+"/clip.mp4") + "&type=reel"
	rec := doRequest(t, s, target, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "direct-bytes", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename="reel-\d+\.mp4"$`, rec.Header().Get("Content-Disposition"))
}

func TestDownloadRejectsMissingParams(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(t, s, "/api/download", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.APIKey = "secret"
	s := newTestServer(t, cfg)

	// Health stays open.
	rec := doRequest(t, s, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, "/api/resolve?url=x", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, "/api/resolve?url=x", http.Header{"X-Api-Key": {"secret"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "authenticated request reaches the handler")
}

func TestDownloadRejectsTypeMismatch(t *testing.T) {
	s := newTestServer(t, nil)
	target := "/api/download?type=reel&url=" + url.QueryEscape("https://www.facebook.com/watch?v=123456789")
	rec := doRequest(t, s, target, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Error, "not reel")
}

func TestRequestIDPassthrough(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(t, s, "/api/health", http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
