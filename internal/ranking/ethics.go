package ranking

import "briefboard/internal/models"

// ComputeEthicsStats groups records by model and averages the server
// supplied percentage reduction per ethics key. Every record of the model
// counts toward Total; a missing value contributes 0. The reduction is
// taken as given and never recomputed from the detox reports.
func ComputeEthicsStats(records []models.SummaryRecord) []models.ModelEthicsStat {
	type acc struct {
		total int
		sums  map[string]float64
	}
	order := make([]string, 0)
	groups := map[string]*acc{}
	for _, rec := range records {
		g, ok := groups[rec.ModelName]
		if !ok {
			g = &acc{sums: map[string]float64{}}
			groups[rec.ModelName] = g
			order = append(order, rec.ModelName)
		}
		g.total++
		for _, key := range models.EthicsKeys {
			g.sums[key] += rec.PercentageReduction[key]
		}
	}

	out := make([]models.ModelEthicsStat, 0, len(order))
	for _, model := range order {
		g := groups[model]
		averages := make(map[string]float64, len(models.EthicsKeys))
		for _, key := range models.EthicsKeys {
			averages[key] = g.sums[key] / float64(g.total)
		}
		out = append(out, models.ModelEthicsStat{Model: model, Total: g.total, Averages: averages})
	}
	return out
}
