package ranking

import (
	"sort"

	"briefboard/internal/models"
)

type ToxicityRow struct {
	Category      string  `json:"category" yaml:"category"`
	ReportPct     float64 `json:"report_pct" yaml:"report_pct"`
	SummaryPct    float64 `json:"summary_pct" yaml:"summary_pct"`
	DifferencePct float64 `json:"difference_pct" yaml:"difference_pct"`
}

// ToxicityComparison is the per-record report vs summary table. Its
// difference is (summary - report) in percentage points, negative when the
// summary is less toxic. It is unrelated to the server's
// PercentageReduction and never feeds a leaderboard.
type ToxicityComparison struct {
	Rows    []ToxicityRow `json:"rows" yaml:"rows"`
	Overall ToxicityRow   `json:"overall" yaml:"overall"`
}

// CompareToxicity builds the table over the categories of the record's
// detox report. It returns false when the record has no report.
func CompareToxicity(rec models.SummaryRecord) (ToxicityComparison, bool) {
	if len(rec.DetoxReport) == 0 {
		return ToxicityComparison{}, false
	}
	cats := make([]string, 0, len(rec.DetoxReport))
	for cat := range rec.DetoxReport {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	out := ToxicityComparison{Rows: make([]ToxicityRow, 0, len(cats))}
	var sumReport, sumSummary, sumDiff float64
	for _, cat := range cats {
		report := rec.DetoxReport[cat]
		summary := rec.DetoxSummary[cat]
		out.Rows = append(out.Rows, ToxicityRow{
			Category:      cat,
			ReportPct:     report * 100,
			SummaryPct:    summary * 100,
			DifferencePct: (summary - report) * 100,
		})
		sumReport += report
		sumSummary += summary
		sumDiff += summary - report
	}
	n := float64(len(cats))
	out.Overall = ToxicityRow{
		Category:      "overall",
		ReportPct:     sumReport / n * 100,
		SummaryPct:    sumSummary / n * 100,
		DifferencePct: sumDiff / n * 100,
	}
	return out, true
}
