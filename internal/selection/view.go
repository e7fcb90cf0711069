package selection

import "briefboard/internal/models"

// View is the active display target. Only Idle, Viewing and Batch
// implement it, so a selected record and an active live batch cannot both
// be the current view.
type View interface {
	Kind() string
	isView()
}

type Idle struct{}

// Viewing shows one persisted history record.
type Viewing struct {
	Record models.SummaryRecord
}

// Batch shows the live results of the latest submission in arrival order.
type Batch struct {
	Records []models.SummaryRecord
}

func (Idle) Kind() string    { return "idle" }
func (Viewing) Kind() string { return "viewing" }
func (Batch) Kind() string   { return "batch" }

func (Idle) isView()    {}
func (Viewing) isView() {}
func (Batch) isView()   {}
