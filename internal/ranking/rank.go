package ranking

import (
	"fmt"
	"sort"
	"strings"

	"briefboard/internal/models"
	"briefboard/internal/util"
)

const DefaultKey = "overall"

// Ranked is any per-model aggregate that exposes an average per key.
type Ranked interface {
	Average(key string) float64
}

// Rank returns a copy of stats sorted by the key's average, highest first.
// Ties keep their input order.
func Rank[S Ranked](stats []S, key string) []S {
	out := make([]S, len(stats))
	copy(out, stats)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Average(key) > out[j].Average(key)
	})
	return out
}

func QualityLeaderboard(records []models.SummaryRecord, key string) []models.ModelQualityStat {
	return Rank(ComputeQualityStats(records), key)
}

func EthicsLeaderboard(records []models.SummaryRecord, key string) []models.ModelEthicsStat {
	return Rank(ComputeEthicsStats(records), key)
}

// ParseQualityKey validates a quality sort key; empty means overall.
func ParseQualityKey(key string) (string, error) {
	return parseKey(key, models.QualityCriteria)
}

// ParseEthicsKey validates an ethics sort key; empty means overall.
func ParseEthicsKey(key string) (string, error) {
	return parseKey(key, models.EthicsKeys)
}

func parseKey(key string, allowed []string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return DefaultKey, nil
	}
	for _, k := range allowed {
		if k == key {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w %q", util.ErrUnknownKey, key)
}
