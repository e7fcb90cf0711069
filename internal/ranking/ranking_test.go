package ranking

import (
	"math"
	"testing"

	"briefboard/internal/models"
	"briefboard/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(model string, overall float64) models.SummaryRecord {
	s := "summary"
	return models.SummaryRecord{
		ModelName:   model,
		SummaryText: &s,
		QualityScores: map[string]models.QualityScore{
			"overall": {Score: overall},
		},
	}
}

func unscored(model string) models.SummaryRecord {
	s := "summary"
	return models.SummaryRecord{ModelName: model, SummaryText: &s}
}

func withReduction(model string, red map[string]float64) models.SummaryRecord {
	r := unscored(model)
	r.PercentageReduction = red
	return r
}

func TestQualityCountIgnoresRecordsWithoutScores(t *testing.T) {
	records := []models.SummaryRecord{
		scored("GPT-4.1", 8), scored("GPT-4.1", 6), scored("GPT-4.1", 7), unscored("GPT-4.1"),
	}
	stats := ComputeQualityStats(records)
	require.Len(t, stats, 1)
	assert.Equal(t, "GPT-4.1", stats[0].Model)
	assert.Equal(t, 3, stats[0].Count)
	assert.InDelta(t, 7.0, stats[0].Averages["overall"], 1e-9)
	assert.Equal(t, 0.0, stats[0].Averages["fluency"])
}

func TestQualityModelWithoutScoredRecordsAveragesZero(t *testing.T) {
	stats := ComputeQualityStats([]models.SummaryRecord{unscored("BART"), unscored("BART")})
	require.Len(t, stats, 1)
	assert.Equal(t, 0, stats[0].Count)
	for _, crit := range models.QualityCriteria {
		assert.Equal(t, 0.0, stats[0].Averages[crit], crit)
		assert.False(t, math.IsNaN(stats[0].Averages[crit]))
	}
}

func TestQualityMissingCriterionCountsAsZeroInSum(t *testing.T) {
	a := scored("CLAUDE", 8)
	a.QualityScores["coherence"] = models.QualityScore{Score: 6}
	b := scored("CLAUDE", 6)
	stats := ComputeQualityStats([]models.SummaryRecord{a, b})
	require.Len(t, stats, 1)
	assert.InDelta(t, 3.0, stats[0].Averages["coherence"], 1e-9)
	assert.InDelta(t, 7.0, stats[0].Averages["overall"], 1e-9)
}

func TestQualityEmptyScoreMapStillCounts(t *testing.T) {
	r := unscored("Grok 3")
	r.QualityScores = map[string]models.QualityScore{}
	stats := ComputeQualityStats([]models.SummaryRecord{r, scored("Grok 3", 9)})
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 4.5, stats[0].Averages["overall"], 1e-9)
}

func TestRankQualityByOverall(t *testing.T) {
	records := []models.SummaryRecord{
		scored("A", 8), scored("A", 6), scored("A", 7),
		scored("B", 9),
	}
	board := QualityLeaderboard(records, "overall")
	require.Len(t, board, 2)
	assert.Equal(t, "B", board[0].Model)
	assert.Equal(t, "A", board[1].Model)
	assert.Equal(t, 3, board[1].Count)
}

func TestRankIsStableUnderTies(t *testing.T) {
	records := []models.SummaryRecord{scored("X", 5), scored("Y", 5), scored("Z", 7), scored("W", 5)}
	board := QualityLeaderboard(records, "overall")
	names := []string{}
	for _, s := range board {
		names = append(names, s.Model)
	}
	assert.Equal(t, []string{"Z", "X", "Y", "W"}, names)
}

func TestRankDoesNotMutateInputAndIsDeterministic(t *testing.T) {
	stats := ComputeQualityStats([]models.SummaryRecord{scored("low", 1), scored("high", 9)})
	first := Rank(stats, "overall")
	second := Rank(stats, "overall")
	assert.Equal(t, first, second)
	assert.Equal(t, "low", stats[0].Model)
}

func TestEthicsTotalCountsEveryRecord(t *testing.T) {
	records := []models.SummaryRecord{
		withReduction("M", map[string]float64{"toxicity": 60, "overall": 30}),
		withReduction("M", map[string]float64{"toxicity": 30}),
		unscored("M"),
	}
	stats := ComputeEthicsStats(records)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Total)
	assert.InDelta(t, 30.0, stats[0].Averages["toxicity"], 1e-9)
	assert.InDelta(t, 10.0, stats[0].Averages["overall"], 1e-9)
	assert.Len(t, stats[0].Averages, len(models.EthicsKeys))
}

func TestEthicsTrustsSuppliedReduction(t *testing.T) {
	r := withReduction("M", map[string]float64{"toxicity": 75.0})
	r.DetoxReport = map[string]float64{"toxicity": 0.20}
	r.DetoxSummary = map[string]float64{"toxicity": 0.05}
	stats := ComputeEthicsStats([]models.SummaryRecord{r})
	assert.Equal(t, 75.0, stats[0].Averages["toxicity"])
}

func TestEthicsLeaderboardByKey(t *testing.T) {
	records := []models.SummaryRecord{
		withReduction("A", map[string]float64{"insult": 10, "threat": 90}),
		withReduction("B", map[string]float64{"insult": 50, "threat": 20}),
	}
	assert.Equal(t, "B", EthicsLeaderboard(records, "insult")[0].Model)
	assert.Equal(t, "A", EthicsLeaderboard(records, "threat")[0].Model)
}

func TestParseKeys(t *testing.T) {
	k, err := ParseQualityKey("")
	require.NoError(t, err)
	assert.Equal(t, "overall", k)
	k, err = ParseQualityKey(" Fluency ")
	require.NoError(t, err)
	assert.Equal(t, "fluency", k)
	_, err = ParseQualityKey("toxicity")
	assert.ErrorIs(t, err, util.ErrUnknownKey)
	k, err = ParseEthicsKey("severe_toxicity")
	require.NoError(t, err)
	assert.Equal(t, "severe_toxicity", k)
}

func TestCompareToxicityUsesPercentagePointDifference(t *testing.T) {
	r := unscored("M")
	r.DetoxReport = map[string]float64{"toxicity": 0.20, "insult": 0.10}
	r.DetoxSummary = map[string]float64{"toxicity": 0.05}
	r.PercentageReduction = map[string]float64{"toxicity": 75}
	cmp, ok := CompareToxicity(r)
	require.True(t, ok)
	require.Len(t, cmp.Rows, 2)
	assert.Equal(t, "insult", cmp.Rows[0].Category)
	assert.InDelta(t, -10.0, cmp.Rows[0].DifferencePct, 1e-9)
	assert.InDelta(t, -15.0, cmp.Rows[1].DifferencePct, 1e-9)
	assert.InDelta(t, 15.0, cmp.Overall.ReportPct, 1e-9)
	assert.InDelta(t, -12.5, cmp.Overall.DifferencePct, 1e-9)

	_, ok = CompareToxicity(unscored("M"))
	assert.False(t, ok)
}
