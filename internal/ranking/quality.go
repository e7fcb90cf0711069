package ranking

import "briefboard/internal/models"

// ComputeQualityStats groups records by model. Only records that carry
// quality scores contribute: Count is the size of that subgroup and every
// criterion average divides by it. A criterion missing from a contributing
// record adds nothing to the sum. Models appear in first-seen order; a model
// without any scored record is reported with Count 0 and zero averages.
func ComputeQualityStats(records []models.SummaryRecord) []models.ModelQualityStat {
	type acc struct {
		count int
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
		if !rec.HasQualityScores() {
			continue
		}
		g.count++
		for crit, qs := range rec.QualityScores {
			g.sums[crit] += qs.Score
		}
	}

	out := make([]models.ModelQualityStat, 0, len(order))
	for _, model := range order {
		g := groups[model]
		averages := make(map[string]float64, len(models.QualityCriteria))
		for _, crit := range models.QualityCriteria {
			if g.count == 0 {
				averages[crit] = 0
				continue
			}
			averages[crit] = g.sums[crit] / float64(g.count)
		}
		out = append(out, models.ModelQualityStat{Model: model, Count: g.count, Averages: averages})
	}
	return out
}
