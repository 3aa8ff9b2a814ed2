// Package db persists classifications and achievements.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Anuj2862/EcoSort-AI/config"
	"github.com/Anuj2862/EcoSort-AI/models"
	"github.com/Anuj2862/EcoSort-AI/waste"
)

// ErrNotFound is returned by lookups for a missing record.
var ErrNotFound = errors.New("record not found")

// Store is the persistence gateway used by the HTTP handlers and the
// achievement tracker.
type Store interface {
	// InsertClassification appends c and returns its assigned id.
	InsertClassification(ctx context.Context, c *models.Classification) (int64, error)
	// RecentClassifications returns up to limit records, newest first.
	RecentClassifications(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	// GetClassification loads a full record by id.
	GetClassification(ctx context.Context, id int64) (models.Classification, error)
	CountClassifications(ctx context.Context) (int, error)
	// UnlockAchievement inserts the achievement if absent and reports
	// whether this call inserted it.
	UnlockAchievement(ctx context.Context, def waste.AchievementDefinition, at time.Time) (bool, error)
	// ListAchievements returns unlocked achievements, most recent first.
	ListAchievements(ctx context.Context) ([]models.Achievement, error)
	// Aggregates computes the statistics counters; SinceCount covers
	// classifications at or after since.
	Aggregates(ctx context.Context, since time.Time) (models.Aggregates, error)
	Migrate(ctx context.Context) error
	Close() error
}

// NewStore opens the store selected by cfg.StoreDriver and migrates it.
func NewStore(ctx context.Context, cfg config.Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.StoreDriver {
	case "mongo":
		store, err = NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "sqlite", "":
		store, err = NewSQLiteClient(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("error migrating %s store: %w", cfg.StoreDriver, err)
	}
	return store, nil
}

// storedTime normalizes timestamps to UTC at microsecond precision so they
// compare and round-trip identically across drivers.
func storedTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}
