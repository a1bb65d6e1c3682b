package analysis

import (
	"math"

	"github.com/jwalitptl/capd-api/internal/model"
	"github.com/jwalitptl/capd-api/internal/service"
)

type BalanceStats struct {
	TotalTreatments      int     `json:"total_treatments"`
	PositiveBalanceCount int     `json:"positive_balance_count"`
	NegativeBalanceCount int     `json:"negative_balance_count"`
	ZeroBalanceCount     int     `json:"zero_balance_count"`
	AverageBalance       float64 `json:"average_balance"`
	PositivePercentage   float64 `json:"positive_percentage"`
	FavorablePercentage  float64 `json:"favorable_percentage"`
	MajorityFavorable    bool    `json:"majority_favorable"`
}

// SummarizeBalances classifies each balance by sign. Percentages and the
// average are rounded to two decimals.
func SummarizeBalances(balances []model.FluidBalance) BalanceStats {
	stats := BalanceStats{TotalTreatments: len(balances)}
	if len(balances) == 0 {
		return stats
	}

	var sum float64
	favorable := 0
	for _, b := range balances {
		sum += b.Float()
		switch b.Sign() {
		case "positive":
			stats.PositiveBalanceCount++
		case "negative":
			stats.NegativeBalanceCount++
		default:
			stats.ZeroBalanceCount++
		}
		if b.Favorable() {
			favorable++
		}
	}

	total := float64(len(balances))
	stats.AverageBalance = service.Round2(sum / total)
	stats.PositivePercentage = service.Round2(float64(stats.PositiveBalanceCount) / total * 100)
	stats.FavorablePercentage = service.Round2(float64(favorable) / total * 100)
	stats.MajorityFavorable = stats.FavorablePercentage > 50
	return stats
}

type BagCount struct {
	Prescribed int `json:"prescribed"`
	Taken      int `json:"taken"`
	Remaining  int `json:"remaining"`
}

type BagStats struct {
	Total   BagCount            `json:"total"`
	Details map[string]BagCount `json:"details"`
}

// TallyBags computes remaining = max(0, prescribed - taken) per concentration.
// Keys outside the supported set are ignored.
func TallyBags(prescribed, taken map[model.Dialysate]int) BagStats {
	stats := BagStats{Details: make(map[string]BagCount, len(model.Dialysates()))}
	for _, d := range model.Dialysates() {
		c := BagCount{Prescribed: prescribed[d], Taken: taken[d]}
		c.Remaining = max(0, c.Prescribed-c.Taken)

		stats.Details[d.String()] = c
		stats.Total.Prescribed += c.Prescribed
		stats.Total.Taken += c.Taken
		stats.Total.Remaining += c.Remaining
	}
	return stats
}

// percent rounds part/total*100 to a whole number; zero when total is zero.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
