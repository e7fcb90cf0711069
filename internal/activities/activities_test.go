package activities

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"briefboard/internal/models"
	"briefboard/internal/remote"
	"briefboard/internal/submission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	user  string
	count int
}

func (m *recordingMirror) ReplaceSnapshot(_ context.Context, username string, records []models.SummaryRecord) error {
	m.user = username
	m.count = len(records)
	return nil
}

func TestStageSummarizeMirrorCleanup(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	svc := remote.NewFakeService()
	mirror := &recordingMirror{}
	a := New(root, svc, submission.New(svc), mirror, nil, nil)

	staged, err := Stage(root, "batch-1", []submission.Input{
		{Filename: "a.txt", Content: []byte("The bridge was secured before noon.")},
		{Filename: "a.txt", Content: []byte("A second file with the same name.")},
	})
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.NotEqual(t, staged[0].Path, staged[1].Path)
	assert.Equal(t, "a.txt", staged[1].Filename)
	assert.NotEqual(t, staged[0].SHA256, staged[1].SHA256)
	_, err = os.Stat(filepath.Join(root, "batch-1", "manifest.json"))
	require.NoError(t, err)

	out, err := a.SummarizeInputActivity(ctx, SummarizeInputInput{
		BatchID: "batch-1", Username: "alice", Token: "tok", Model: "BART", Input: staged[0],
	})
	require.NoError(t, err)
	assert.False(t, out.Record.Failed())
	assert.Equal(t, "BART", out.Record.ModelName)
	assert.Empty(t, out.ErrorType)

	mo, err := a.RefreshMirrorActivity(ctx, RefreshMirrorInput{BatchID: "batch-1", Username: "alice", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, 1, mo.Count)
	assert.Equal(t, "alice", mirror.user)
	assert.Equal(t, 1, mirror.count)

	require.NoError(t, a.CleanupStagedActivity(ctx, CleanupStagedInput{BatchID: "batch-1"}))
	_, err = os.Stat(filepath.Join(root, "batch-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestSummarizeMissingStagedFileYieldsFailedRecord(t *testing.T) {
	svc := remote.NewFakeService()
	a := New(t.TempDir(), svc, submission.New(svc), nil, nil, nil)
	out, err := a.SummarizeInputActivity(context.Background(), SummarizeInputInput{
		Username: "alice", Token: "tok", Model: "BART",
		Input: StagedInput{Filename: "gone.txt", Path: "/nonexistent/gone.txt"},
	})
	require.NoError(t, err)
	assert.True(t, out.Record.Failed())
	assert.Equal(t, "gone.txt", out.Record.Filename)
	assert.Equal(t, "permanent", out.ErrorType)
}

func TestRefreshMirrorWithoutTokenFails(t *testing.T) {
	svc := remote.NewFakeService()
	a := New(t.TempDir(), svc, submission.New(svc), nil, nil, nil)
	_, err := a.RefreshMirrorActivity(context.Background(), RefreshMirrorInput{Username: "alice"})
	require.Error(t, err)
}
