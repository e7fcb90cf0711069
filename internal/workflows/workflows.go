package workflows

import (
	"time"

	"briefboard/internal/activities"
	"briefboard/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetBatchProgress = "GetBatchProgress"

// SubmissionWorkflow submits staged inputs strictly one after another and
// refreshes the durable mirror once at the end.
func SubmissionWorkflow(ctx workflow.Context, input SubmissionInput) (BatchProgress, error) {
	progress := BatchProgress{
		BatchID:    input.BatchID,
		Username:   input.Username,
		Model:      input.Model,
		Status:     BatchRunning,
		Total:      len(input.Inputs),
		Results:    make([]models.SummaryRecord, 0, len(input.Inputs)),
		Rejections: input.Rejections,
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetBatchProgress, func() (BatchProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}
	logger := workflow.GetLogger(ctx)

	// A per-input failure comes back as a record; a remote call is never
	// repeated.
	summarizeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	for _, in := range input.Inputs {
		progress.Current = in.Filename
		var out activities.SummarizeInputOutput
		err := workflow.ExecuteActivity(summarizeCtx, "SummarizeInputActivity", activities.SummarizeInputInput{
			BatchID:  input.BatchID,
			Username: input.Username,
			Token:    input.Token,
			Model:    input.Model,
			Input:    in,
		}).Get(ctx, &out)
		if err != nil {
			logger.Warn("summarize activity failed", "filename", in.Filename, "error", err)
			out.Record = models.NewFailedRecord(in.Filename, input.Model, err.Error(), workflow.Now(ctx))
		}
		if out.Record.Failed() {
			progress.Failed++
		}
		progress.Results = append(progress.Results, out.Record)
		progress.Done++
	}
	progress.Current = ""

	mirrorCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	})
	var mirrored activities.RefreshMirrorOutput
	if err := workflow.ExecuteActivity(mirrorCtx, "RefreshMirrorActivity", activities.RefreshMirrorInput{
		BatchID:  input.BatchID,
		Username: input.Username,
		Token:    input.Token,
	}).Get(ctx, &mirrored); err != nil {
		progress.MirrorError = err.Error()
	} else {
		progress.Mirrored = mirrored.Count
	}
	_ = workflow.ExecuteActivity(mirrorCtx, "CleanupStagedActivity", activities.CleanupStagedInput{BatchID: input.BatchID}).Get(ctx, nil)

	progress.Status = BatchCompleted
	return progress, nil
}
