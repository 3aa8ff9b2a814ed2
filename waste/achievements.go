package waste

import (
	"context"
	"fmt"
	"time"

	"github.com/Anuj2862/EcoSort-AI/models"
)

// AchievementDefinition unlocks once the classification log reaches Threshold.
type AchievementDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Threshold   int    `json:"threshold"`
}

var achievementDefinitions = [...]AchievementDefinition{
	{ID: "first_scan", Name: "First Scan", Description: "Classified your first item!", Threshold: 1},
	{ID: "eco_newbie", Name: "Eco Newbie", Description: "Classified 10 items", Threshold: 10},
	{ID: "recycling_hero", Name: "Recycling Hero", Description: "Classified 50 items", Threshold: 50},
	{ID: "planet_protector", Name: "Planet Protector", Description: "Classified 100 items", Threshold: 100},
	{ID: "waste_wizard", Name: "Waste Wizard", Description: "Classified 500 items", Threshold: 500},
}

// AchievementDefinitions returns a copy of the static achievement table in
// ascending threshold order.
func AchievementDefinitions() []AchievementDefinition {
	defs := achievementDefinitions
	return defs[:]
}

// Due returns the definitions whose threshold is reached at total.
func Due(total int) []AchievementDefinition {
	var due []AchievementDefinition
	for _, def := range achievementDefinitions {
		if total >= def.Threshold {
			due = append(due, def)
		}
	}
	return due
}

// AchievementStore is the subset of the persistence gateway the tracker needs.
// UnlockAchievement must insert atomically and report false when the
// achievement was already unlocked.
type AchievementStore interface {
	CountClassifications(ctx context.Context) (int, error)
	UnlockAchievement(ctx context.Context, def AchievementDefinition, at time.Time) (bool, error)
}

// Tracker unlocks achievements against the persisted classification count.
type Tracker struct {
	store AchievementStore
}

func NewTracker(store AchievementStore) *Tracker {
	return &Tracker{store: store}
}

// Check unlocks every due achievement that is not unlocked yet and returns
// the ones unlocked by this call.
func (t *Tracker) Check(ctx context.Context, now time.Time) ([]models.Achievement, error) {
	total, err := t.store.CountClassifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("count classifications: %w", err)
	}

	unlocked := []models.Achievement{}
	for _, def := range Due(total) {
		inserted, err := t.store.UnlockAchievement(ctx, def, now)
		if err != nil {
			return unlocked, fmt.Errorf("unlock %s: %w", def.ID, err)
		}
		if inserted {
			unlocked = append(unlocked, models.Achievement{
				ID:          def.ID,
				Name:        def.Name,
				Description: def.Description,
				UnlockedAt:  now,
			})
		}
	}
	return unlocked, nil
}
