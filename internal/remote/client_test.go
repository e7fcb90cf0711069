package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"

	"github.com/stretchr/testify/require"
)

var testSession = models.Session{Username: "alice", Token: "tok"}

func TestClientListSummariesSendsBearerAndUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/summaries", r.URL.Path)
		require.Equal(t, "alice", r.URL.Query().Get("user"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"summaries":[{"id":1,"filename":"a.txt","summary":"s","created_at":"2025-01-01 00:00:00","metadata":"{\"model\":\"BART\"}"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	raws, err := c.ListSummaries(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	rec, err := Normalize(raws[0])
	require.NoError(t, err)
	require.Equal(t, "BART", rec.ModelName)
}

func TestClientUnauthorizedWrapsErrAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ListSummaries(context.Background(), testSession)
	require.ErrorIs(t, err, util.ErrAuth)
	require.Equal(t, ErrorAuth, ClassifyError(err))
}

func TestClientSummarizeMultipartAndOrderedOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "alice", r.FormValue("user_id"))
		require.Equal(t, "GPT-4.1", r.FormValue("model"))
		require.Len(t, r.MultipartForm.File["files"], 2)
		_, _ = io.WriteString(w, `{"b.txt":{"summary":"ok","metadata":{"model":"GPT-4.1"}},"a.txt":"Error: too long"}`)
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).Summarize(context.Background(), testSession, SummarizeRequest{
		Model: "GPT-4.1",
		Files: []Upload{{Filename: "b.txt", Content: []byte("x")}, {Filename: "a.txt", Content: []byte("y")}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "b.txt", out[0].Filename)
	require.False(t, out[0].Failed)
	require.Equal(t, "a.txt", out[1].Filename)
	require.True(t, out[1].Failed)
	require.Equal(t, "Error: too long", out[1].Error)
}

func TestClientTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewClient(url, time.Second).DeleteSummary(context.Background(), testSession, "3")
	require.ErrorIs(t, err, util.ErrNetwork)
}

func TestClientDeleteServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/summaries/9", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"Could not delete summary"}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).DeleteSummary(context.Background(), testSession, "9")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestParseOutcomesRejectsNonObject(t *testing.T) {
	_, err := ParseOutcomes([]byte(`["a"]`))
	require.Error(t, err)
}

func TestClientListSummariesKeepsRecordWithOddScalars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"summaries":[
			{"id":1,"filename":"a.txt","summary":"s","created_at":"2025-01-01 00:00:00","model":"BART"},
			{"id":2,"filename":"b.txt","summary":"t","created_at":1735725600,"model":{"name":"x"}},
			42
		]}`)
	}))
	defer srv.Close()

	raws, err := NewClient(srv.URL, time.Second).ListSummaries(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	good, err := Normalize(raws[0])
	require.NoError(t, err)
	require.Equal(t, "BART", good.ModelName)

	odd, err := Normalize(raws[1])
	require.ErrorIs(t, err, util.ErrMalformedMetadata)
	require.Equal(t, "2", odd.ID)
	require.Equal(t, "t", odd.Summary())
	require.Equal(t, models.UnknownModel, odd.ModelName)
	require.True(t, odd.CreatedAt.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestClientBadRequestIsNotAuthEvenIfBodySaysSo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"401 unauthorized token field missing, unexpected EOF"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ListSummaries(context.Background(), testSession)
	require.Error(t, err)
	require.NotErrorIs(t, err, util.ErrAuth)
	require.Equal(t, ErrorPermanent, ClassifyError(err))
}
