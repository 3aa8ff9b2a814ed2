package waste

import (
	"testing"
	"time"

	"github.com/Anuj2862/EcoSort-AI/models"
)

func TestRecyclabilityRateGuardsEmptyLog(t *testing.T) {
	t.Parallel()

	if got := RecyclabilityRate(0, 0); got != 0 {
		t.Fatalf("expected 0 for empty log, got %f", got)
	}
	if got := RecyclabilityRate(2, 3); got != 66.7 {
		t.Fatalf("expected 66.7, got %f", got)
	}
}

func TestBuildStatistics(t *testing.T) {
	t.Parallel()

	stats := BuildStatistics(models.Aggregates{
		Total:              4,
		ByCategory:         map[string]int{"metal": 3, "trash": 1},
		SinceCount:         2,
		AvgConfidence:      81.23456,
		AchievementsCount:  1,
		RecyclableCount:    3,
		NonRecyclableCount: 1,
		AvgEcoScore:        77.55,
	})
	if stats.RecyclabilityRate != 75 {
		t.Fatalf("expected rate 75, got %f", stats.RecyclabilityRate)
	}
	if stats.AvgConfidence != 81.23 {
		t.Fatalf("expected avg confidence 81.23, got %f", stats.AvgConfidence)
	}
	if stats.AvgEcoScore != 77.6 && stats.AvgEcoScore != 77.5 {
		t.Fatalf("unexpected avg eco score %f", stats.AvgEcoScore)
	}
	if stats.ThisWeek != 2 || stats.ByCategory["metal"] != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	empty := BuildStatistics(models.Aggregates{})
	if empty.ByCategory == nil || empty.RecyclabilityRate != 0 {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}
}

func TestWeekStart(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	if got := WeekStart(now); !got.Equal(time.Date(2026, 10, 11, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected week start %s", got)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	outputs := []ModelOutput{
		{Model: "Model 1", Labels: labelsA, Probs: []float64{0.01, 0.96, 0.01, 0.01, 0.01}},
		{Model: "Model 2", Labels: labelsB, Probs: []float64{0.2, 0.2, 0.2, 0.2, 0.2}},
	}
	eval, err := Evaluate(AssessQuality(128, 150), outputs)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if eval.Decision.Label != "metal" || !eval.Verdict.Recyclable || eval.Verdict.EcoScore != 100 {
		t.Fatalf("unexpected evaluation: %+v", eval)
	}

	if _, err := Evaluate(DefaultQuality(), nil); err == nil {
		t.Fatalf("expected error without classifiers")
	}
}
