package waste

import (
	"time"

	"github.com/Anuj2862/EcoSort-AI/models"
)

// StatsWindow is the trailing window counted as "this week".
const StatsWindow = 7 * 24 * time.Hour

// WeekStart returns the start of the trailing statistics window ending at now.
func WeekStart(now time.Time) time.Time {
	return now.Add(-StatsWindow)
}

// RecyclabilityRate returns recyclable/total as a percentage, or 0 for an
// empty log.
func RecyclabilityRate(recyclable, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round(float64(recyclable)/float64(total)*100, 1)
}

// BuildStatistics derives the public statistics view from store aggregates.
func BuildStatistics(agg models.Aggregates) models.Statistics {
	byCategory := agg.ByCategory
	if byCategory == nil {
		byCategory = map[string]int{}
	}
	return models.Statistics{
		Total:              agg.Total,
		ByCategory:         byCategory,
		ThisWeek:           agg.SinceCount,
		AvgConfidence:      round(agg.AvgConfidence, 2),
		AchievementsCount:  agg.AchievementsCount,
		RecyclableCount:    agg.RecyclableCount,
		NonRecyclableCount: agg.NonRecyclableCount,
		RecyclabilityRate:  RecyclabilityRate(agg.RecyclableCount, agg.Total),
		AvgEcoScore:        round(agg.AvgEcoScore, 1),
	}
}
