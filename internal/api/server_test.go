package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"briefboard/internal/config"
	"briefboard/internal/dashboard"
	"briefboard/internal/remote"
	"briefboard/internal/session"
	"briefboard/internal/submission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tclient "go.temporal.io/sdk/client"
)

type testServer struct {
	srv        *httptest.Server
	token      string
	dashboards *dashboard.Manager
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	return newTestServerWith(t, config.Config{MaxFileBytes: 1 << 10, DefaultModel: "Mistral small"}, nil)
}

func newTestServerWith(t *testing.T, cfg config.Config, temporal tclient.Client) testServer {
	t.Helper()
	v, err := session.NewVerifier("test-secret")
	require.NoError(t, err)
	tok, err := v.Sign("alice", time.Hour)
	require.NoError(t, err)
	svc := remote.NewFakeService()
	pipeline := submission.New(svc, submission.WithMaxBytes(cfg.MaxFileBytes), submission.WithDefaultModel(cfg.DefaultModel))
	dashboards := dashboard.NewManager(svc, pipeline, nil)
	s := NewServer(cfg, Deps{
		Dashboards: dashboards,
		Verifier:   v,
		Temporal:   temporal,
	})
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return testServer{srv: srv, token: tok, dashboards: dashboards}
}

func (ts testServer) do(t *testing.T, method, path string, body []byte, contentType string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["code"].(string)
	return s
}

func TestHealthzAndModelsArePublic(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.srv.URL + "/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Models []map[string]string `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Models, 8)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "BB-API-4010", errorCode(out))
}

func TestSubmitSelectDeleteFlow(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t,
		map[string]string{"model": "BART", "text": "Forward units report calm conditions."},
		map[string][]byte{
			"notes.txt": []byte("Patrol returned without incident."),
			"photo.png": []byte("not allowed"),
		})
	code, out := ts.do(t, http.MethodPost, "/submissions", body, ct)
	require.Equal(t, http.StatusOK, code, out)
	assert.Len(t, out["records"], 2)
	assert.Len(t, out["rejections"], 1)
	records := out["records"].([]any)
	assert.True(t, strings.HasPrefix(records[0].(map[string]any)["filename"].(string), "clipboard-"))

	code, out = ts.do(t, http.MethodGet, "/history", nil, "")
	require.Equal(t, http.StatusOK, code)
	hist := out["history"].([]any)
	require.Len(t, hist, 2)
	id := hist[0].(map[string]any)["id"].(string)

	code, out = ts.do(t, http.MethodGet, "/history?q=bart", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["options"], 2)

	code, out = ts.do(t, http.MethodGet, "/leaderboards/quality?sort=fluency", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fluency", out["sort"])
	assert.Len(t, out["leaderboard"], 1)

	code, out = ts.do(t, http.MethodPost, "/selection", []byte(`{"id":"`+id+`"}`), "application/json")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "viewing", out["view"])
	assert.Len(t, out["items"], 1)

	code, out = ts.do(t, http.MethodDelete, "/history/"+id, nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["history"], 1)
	assert.Equal(t, "batch", out["display"].(map[string]any)["view"])
}

func TestEmptySubmissionIsRejected(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, map[string]string{"text": "   "}, nil)
	code, out := ts.do(t, http.MethodPost, "/submissions", body, ct)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Select file or enter text!", out["error"].(map[string]any)["message"])
}

func TestOversizeUploadIsRejectedPerFile(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, nil, map[string][]byte{
		"big.txt":   bytes.Repeat([]byte("a "), 1<<10),
		"small.txt": []byte("short note"),
	})
	code, out := ts.do(t, http.MethodPost, "/submissions", body, ct)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["records"], 1)
	rej := out["rejections"].([]any)
	require.Len(t, rej, 1)
	assert.Equal(t, "big.txt", rej[0].(map[string]any)["filename"])
}

func TestUnknownModelAndSortKey(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, map[string]string{"model": "GPT-9", "text": "hi"}, nil)
	code, out := ts.do(t, http.MethodPost, "/submissions", body, ct)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BB-API-4001", errorCode(out))

	code, out = ts.do(t, http.MethodGet, "/leaderboards/ethics?sort=nope", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Unknown leaderboard sort key.", out["error"].(map[string]any)["message"])
}

func TestHistoryPanelAndUnknownSelection(t *testing.T) {
	ts := newTestServer(t)
	code, out := ts.do(t, http.MethodPost, "/history/panel", []byte(`{"open":true}`), "application/json")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["history_open"])

	code, _ = ts.do(t, http.MethodPost, "/selection", []byte(`{"id":"404"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, http.MethodGet, "/submissions/abc", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}
