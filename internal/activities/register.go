package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.SummarizeInputActivity)
	w.RegisterActivity(a.RefreshMirrorActivity)
	w.RegisterActivity(a.CleanupStagedActivity)
}
