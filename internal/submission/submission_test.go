package submission

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/remote"
	"briefboard/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sess = models.Session{Username: "alice", Token: "tok"}

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 123000000, time.UTC)

type scriptedService struct {
	calls   []remote.SummarizeRequest
	replies map[string]func() ([]remote.FileOutcome, error)
}

func (s *scriptedService) ListSummaries(context.Context, models.Session) ([]remote.RawRecord, error) {
	return nil, nil
}

func (s *scriptedService) Summarize(_ context.Context, _ models.Session, req remote.SummarizeRequest) ([]remote.FileOutcome, error) {
	s.calls = append(s.calls, req)
	name := req.Files[0].Filename
	if fn, ok := s.replies[name]; ok {
		return fn()
	}
	return []remote.FileOutcome{{
		Filename: name,
		Summary:  "summary of " + name,
		Metadata: json.RawMessage(`{"model":"` + req.Model + `","quality_scores":{"Overall":{"score":7}}}`),
	}}, nil
}

func (s *scriptedService) DeleteSummary(context.Context, models.Session, string) error { return nil }

type event struct {
	kind string
	rec  models.SummaryRecord
}

type recordingSink struct {
	events []event
}

func (r *recordingSink) BeginSubmission() { r.events = append(r.events, event{kind: "begin"}) }

func (r *recordingSink) AppendResult(rec models.LiveBatchResult) {
	r.events = append(r.events, event{kind: "append", rec: rec})
}

type countingRefresher struct {
	n   int
	err error
}

func (c *countingRefresher) Refresh(context.Context, models.Session) ([]models.SummaryRecord, error) {
	c.n++
	return nil, c.err
}

func newPipeline(svc remote.Service) *Pipeline {
	return New(svc, WithClock(func() time.Time { return fixedNow }), WithDefaultModel("Mistral small"))
}

func TestClipboardFilename(t *testing.T) {
	assert.Equal(t, "clipboard-2026-10-17T09-30-00-123Z.txt", ClipboardFilename(fixedNow))
}

func TestAssemblePlacesTextFirst(t *testing.T) {
	inputs, err := Assemble("  pasted\x00 text ", []Input{{Filename: "a.pdf"}}, fixedNow)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.True(t, inputs[0].Synthetic)
	assert.Equal(t, "pasted text", string(inputs[0].Content))
	assert.Equal(t, "a.pdf", inputs[1].Filename)

	_, err = Assemble("   ", nil, fixedNow)
	assert.ErrorIs(t, err, util.ErrEmptySubmission)
}

func TestValidateRejectsIndividually(t *testing.T) {
	inputs := []Input{
		{Filename: "a.txt", Content: []byte("x")},
		{Filename: "b.png", Content: []byte("x")},
		{Filename: "c.DOCX", Content: []byte("x")},
		{Filename: "d.pdf", Content: make([]byte, 11)},
	}
	accepted, rejected := Validate(inputs, 10)
	require.Len(t, accepted, 2)
	assert.Equal(t, "a.txt", accepted[0].Filename)
	assert.Equal(t, "c.DOCX", accepted[1].Filename)
	require.Len(t, rejected, 2)
	assert.Equal(t, "b.png", rejected[0].Filename)
	assert.Contains(t, rejected[0].Reason, util.ErrUnsupportedType.Error())
	assert.Equal(t, "d.pdf", rejected[1].Filename)
	assert.Contains(t, rejected[1].Reason, util.ErrTooLarge.Error())
}

func TestRunOversizeSecondFileMakesOneCall(t *testing.T) {
	svc := &scriptedService{}
	sink := &recordingSink{}
	ref := &countingRefresher{}
	req := Request{Model: "BART", Files: []Input{
		{Filename: "small.txt", Content: []byte("brief text")},
		{Filename: "huge.pdf", Content: make([]byte, DefaultMaxBytes+1)},
	}}

	res, err := newPipeline(svc).Run(context.Background(), sess, req, sink, ref)
	require.NoError(t, err)
	require.Len(t, svc.calls, 1)
	require.Len(t, res.Records, 1)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "huge.pdf", res.Rejections[0].Filename)
	assert.Equal(t, 1, ref.n)
	assert.NotEmpty(t, res.BatchID)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "begin", sink.events[0].kind)
	assert.Equal(t, "small.txt", sink.events[1].rec.Filename)
	assert.Equal(t, "BART", sink.events[1].rec.ModelName)
	assert.Equal(t, 7.0, sink.events[1].rec.QualityScores["overall"].Score)
	assert.Equal(t, fixedNow, sink.events[1].rec.CreatedAt)
}

func TestRunFailuresDoNotAbortLaterInputs(t *testing.T) {
	svc := &scriptedService{replies: map[string]func() ([]remote.FileOutcome, error){
		"one.txt": func() ([]remote.FileOutcome, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
		"two.txt": func() ([]remote.FileOutcome, error) {
			return []remote.FileOutcome{{Filename: "two.txt", Error: "Error: Document exceeds 1500-word limit", Failed: true}}, nil
		},
	}}
	sink := &recordingSink{}
	ref := &countingRefresher{}
	req := Request{Text: "pasted", Files: []Input{
		{Filename: "one.txt", Content: []byte("a")},
		{Filename: "two.txt", Content: []byte("b")},
		{Filename: "three.txt", Content: []byte("c")},
	}}

	res, err := newPipeline(svc).Run(context.Background(), sess, req, sink, ref)
	require.NoError(t, err)
	require.Len(t, svc.calls, 4)
	assert.Equal(t, "Mistral small", svc.calls[0].Model)

	names := []string{}
	for _, r := range res.Records {
		names = append(names, r.Filename)
	}
	assert.Equal(t, []string{ClipboardFilename(fixedNow), "one.txt", "two.txt", "three.txt"}, names)
	assert.True(t, res.Records[1].Failed())
	assert.Nil(t, res.Records[1].SummaryText)
	assert.Contains(t, res.Records[1].Error(), "connection refused")
	assert.Equal(t, "Error: Document exceeds 1500-word limit", res.Records[2].Error())
	assert.False(t, res.Records[3].Failed())
	assert.Equal(t, 2, res.Failed())
	assert.Equal(t, 1, ref.n)
}

func TestRunEmptySubmissionLeavesStateAlone(t *testing.T) {
	sink := &recordingSink{}
	ref := &countingRefresher{}
	_, err := newPipeline(&scriptedService{}).Run(context.Background(), sess, Request{Text: " "}, sink, ref)
	require.ErrorIs(t, err, util.ErrEmptySubmission)
	assert.Empty(t, sink.events)
	assert.Equal(t, 0, ref.n)
}

func TestRunSurfacesAuthAndRefreshErrors(t *testing.T) {
	svc := &scriptedService{replies: map[string]func() ([]remote.FileOutcome, error){
		"a.txt": func() ([]remote.FileOutcome, error) { return nil, util.ErrAuth },
	}}
	ref := &countingRefresher{err: util.ErrNetwork}
	res, err := newPipeline(svc).Run(context.Background(), sess,
		Request{Files: []Input{{Filename: "a.txt", Content: []byte("a")}}}, &recordingSink{}, ref)
	require.ErrorIs(t, err, util.ErrAuth)
	require.ErrorIs(t, err, util.ErrNetwork)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Failed())
}

func TestInspectText(t *testing.T) {
	got := Inspect(Input{Filename: "a.txt", Content: []byte("one two  three")}, 0)
	assert.True(t, got.Accepted)
	assert.Equal(t, 3, got.Words)
	assert.Equal(t, ".txt", got.Extension)

	got = Inspect(Input{Filename: "a.exe", Content: []byte("x")}, 0)
	assert.False(t, got.Accepted)
}

func TestInspectDocx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="x"><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p><w:p><w:r><w:t>brave world</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got := Inspect(Input{Filename: "a.docx", Content: buf.Bytes()}, 0)
	assert.True(t, got.Accepted)
	assert.Equal(t, 3, got.Words)
	assert.Empty(t, got.Reason)
}

func TestInspectBrokenPDFKeepsInputAccepted(t *testing.T) {
	got := Inspect(Input{Filename: "a.pdf", Content: []byte(strings.Repeat("x", 64))}, 0)
	assert.True(t, got.Accepted)
	assert.NotEmpty(t, got.Reason)
}
