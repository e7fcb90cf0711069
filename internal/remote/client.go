package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"
)

// Client talks to the summarization service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListSummaries(ctx context.Context, sess models.Session) ([]RawRecord, error) {
	u := c.baseURL + "/summaries?user=" + url.QueryEscape(sess.Username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	body, err := c.do(req, sess)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	var parsed struct {
		Summaries []json.RawMessage `json:"summaries"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode summaries response: %w", err)
	}
	out := make([]RawRecord, 0, len(parsed.Summaries))
	for _, entry := range parsed.Summaries {
		var raw RawRecord
		// Entries that are not objects carry no record to keep.
		if err := json.Unmarshal(entry, &raw); err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

func (c *Client) Summarize(ctx context.Context, sess models.Session, in SummarizeRequest) ([]FileOutcome, error) {
	if len(in.Files) == 0 {
		return nil, fmt.Errorf("summarize: no files")
	}
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if err := mw.WriteField("user_id", sess.Username); err != nil {
		return nil, fmt.Errorf("write user_id field: %w", err)
	}
	if err := mw.WriteField("model", in.Model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	for _, f := range in.Files {
		part, err := mw.CreateFormFile("files", f.Filename)
		if err != nil {
			return nil, fmt.Errorf("create file part %s: %w", f.Filename, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("write file part %s: %w", f.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", buf)
	if err != nil {
		return nil, fmt.Errorf("build summarize request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	body, err := c.do(req, sess)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	out, err := ParseOutcomes(body)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

func (c *Client) DeleteSummary(ctx context.Context, sess models.Session, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/summaries/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	if _, err := c.do(req, sess); err != nil {
		return fmt.Errorf("delete summary %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, sess models.Session) ([]byte, error) {
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrNetwork, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", util.ErrNetwork, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: util.DisplaySnippet(string(body), 200)}
	}
	return body, nil
}

// ParseOutcomes decodes the service's {filename: payload|error} reply
// keeping the order in which the entries appear.
func ParseOutcomes(body []byte) ([]FileOutcome, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode outcomes: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("decode outcomes: expected object")
	}
	out := make([]FileOutcome, 0, 1)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode outcome key: %w", err)
		}
		filename, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode outcome %s: %w", filename, err)
		}
		out = append(out, parseOutcome(filename, value))
	}
	return out, nil
}

func parseOutcome(filename string, value json.RawMessage) FileOutcome {
	var msg string
	if err := json.Unmarshal(value, &msg); err == nil {
		return FileOutcome{Filename: filename, Error: msg, Failed: true}
	}
	var payload struct {
		Summary  *string         `json:"summary"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(value, &payload); err != nil || payload.Summary == nil {
		return FileOutcome{Filename: filename, Error: "Error: unexpected response payload", Failed: true}
	}
	return FileOutcome{Filename: filename, Summary: *payload.Summary, Metadata: payload.Metadata}
}
