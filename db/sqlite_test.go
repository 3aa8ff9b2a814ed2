package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Anuj2862/EcoSort-AI/models"
	"github.com/Anuj2862/EcoSort-AI/waste"
)

func newTestDB(t *testing.T) *SQLiteClient {
	t.Helper()
	client, err := NewSQLiteClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteClient: %v", err)
	}
	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func sampleClassification(label string, recyclable bool, at time.Time) *models.Classification {
	return &models.Classification{
		ImagePath:      "static/uploads/abc_" + label + ".jpg",
		PredictedClass: label,
		Confidence:     96.42,
		AllPredictions: models.Predictions{
			{Label: label, Percent: 96.42},
			{Label: "trash", Percent: 3.58},
		},
		Recyclable:           recyclable,
		RecyclableConfidence: 92.1,
		EcoScore:             95,
		SourceModel:          "Model 1",
		Timestamp:            at,
	}
}

func TestInsertAndGetClassification(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	at := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.FixedZone("CET", 3600))
	c := sampleClassification("metal", true, at)
	id, err := store.InsertClassification(ctx, c)
	if err != nil {
		t.Fatalf("InsertClassification: %v", err)
	}
	if id == 0 || c.ID != id {
		t.Fatalf("expected id to be assigned, got %d / %d", id, c.ID)
	}

	got, err := store.GetClassification(ctx, id)
	if err != nil {
		t.Fatalf("GetClassification: %v", err)
	}
	if got.PredictedClass != "metal" || got.Confidence != 96.42 || !got.Recyclable || got.EcoScore != 95 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.SourceModel != "Model 1" {
		t.Fatalf("source model = %q", got.SourceModel)
	}
	want := at.UTC().Truncate(time.Microsecond)
	if !got.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, want)
	}
	if len(got.AllPredictions) != 2 || got.AllPredictions[0].Label != "metal" {
		t.Fatalf("unexpected predictions %+v", got.AllPredictions)
	}

	if _, err := store.GetClassification(ctx, id+100); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentClassificationsOrderAndLimit(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	labels := []string{"glass", "paper", "plastic", "metal"}
	for i, label := range labels {
		if _, err := store.InsertClassification(ctx, sampleClassification(label, true, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert %s: %v", label, err)
		}
	}

	history, err := store.RecentClassifications(ctx, 3)
	if err != nil {
		t.Fatalf("RecentClassifications: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	for i, want := range []string{"metal", "plastic", "paper"} {
		if history[i].PredictedClass != want {
			t.Errorf("history[%d] = %s, want %s", i, history[i].PredictedClass, want)
		}
	}
}

func TestUnlockAchievementIsIdempotent(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	def := waste.AchievementDefinitions()[0]

	first, err := store.UnlockAchievement(ctx, def, time.Now())
	if err != nil {
		t.Fatalf("UnlockAchievement: %v", err)
	}
	second, err := store.UnlockAchievement(ctx, def, time.Now())
	if err != nil {
		t.Fatalf("UnlockAchievement again: %v", err)
	}
	if !first || second {
		t.Fatalf("expected first=true second=false, got %v %v", first, second)
	}

	list, err := store.ListAchievements(ctx)
	if err != nil {
		t.Fatalf("ListAchievements: %v", err)
	}
	if len(list) != 1 || list[0].ID != def.ID || list[0].Name != def.Name {
		t.Fatalf("unexpected achievements %+v", list)
	}
}

func TestConcurrentUnlockInsertsOnce(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	def := waste.AchievementDefinitions()[1]

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.UnlockAchievement(ctx, def, time.Now())
			if err != nil {
				t.Errorf("UnlockAchievement: %v", err)
				return
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
}

func TestTrackerAgainstSQLite(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	tracker := waste.NewTracker(store)

	if _, err := store.InsertClassification(ctx, sampleClassification("glass", true, time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	unlocked, err := tracker.Check(ctx, time.Now())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0].ID != "first_scan" {
		t.Fatalf("expected first_scan, got %+v", unlocked)
	}

	unlocked, err = tracker.Check(ctx, time.Now())
	if err != nil {
		t.Fatalf("Check again: %v", err)
	}
	if len(unlocked) != 0 {
		t.Fatalf("expected no new achievements, got %+v", unlocked)
	}
}

func TestAggregatesEmptyStore(t *testing.T) {
	store := newTestDB(t)

	agg, err := store.Aggregates(context.Background(), time.Now().Add(-waste.StatsWindow))
	if err != nil {
		t.Fatalf("Aggregates: %v", err)
	}
	if agg.Total != 0 || agg.AvgConfidence != 0 || agg.AvgEcoScore != 0 || len(agg.ByCategory) != 0 {
		t.Fatalf("unexpected aggregates %+v", agg)
	}

	stats := waste.BuildStatistics(agg)
	if stats.RecyclabilityRate != 0 {
		t.Fatalf("expected zero rate, got %v", stats.RecyclabilityRate)
	}
}

func TestAggregates(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	records := []*models.Classification{
		sampleClassification("metal", true, now.Add(-time.Hour)),
		sampleClassification("metal", true, now.Add(-2*time.Hour)),
		sampleClassification("trash", false, now.Add(-10*24*time.Hour)),
	}
	records[2].Confidence = 60
	records[2].EcoScore = 20
	for _, r := range records {
		if _, err := store.InsertClassification(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := store.UnlockAchievement(ctx, waste.AchievementDefinitions()[0], now); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	agg, err := store.Aggregates(ctx, now.Add(-waste.StatsWindow))
	if err != nil {
		t.Fatalf("Aggregates: %v", err)
	}
	if agg.Total != 3 || agg.SinceCount != 2 {
		t.Fatalf("total/since = %d/%d", agg.Total, agg.SinceCount)
	}
	if agg.ByCategory["metal"] != 2 || agg.ByCategory["trash"] != 1 {
		t.Fatalf("unexpected categories %v", agg.ByCategory)
	}
	if agg.RecyclableCount != 2 || agg.NonRecyclableCount != 1 || agg.AchievementsCount != 1 {
		t.Fatalf("unexpected counts %+v", agg)
	}

	stats := waste.BuildStatistics(agg)
	if stats.RecyclabilityRate != 66.7 {
		t.Fatalf("rate = %v", stats.RecyclabilityRate)
	}
	if stats.AvgEcoScore != 70 {
		t.Fatalf("avg eco = %v", stats.AvgEcoScore)
	}
	if stats.AvgConfidence != 84.28 {
		t.Fatalf("avg confidence = %v", stats.AvgConfidence)
	}
}

func TestMigrateAddsLegacyColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = raw.Exec(`
		CREATE TABLE classifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			image_path TEXT,
			predicted_class TEXT,
			confidence REAL,
			all_predictions TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO classifications (image_path, predicted_class, confidence, all_predictions, timestamp)
		VALUES ('static/uploads/old.jpg', 'paper', 88.5, '{''paper'': 88.5, ''glass'': 4.25, ''metal'': 7.25}', '2024-05-01 10:00:00.000000');`)
	raw.Close()
	if err != nil {
		t.Fatalf("seed legacy table: %v", err)
	}

	store, err := NewSQLiteClient(path)
	if err != nil {
		t.Fatalf("NewSQLiteClient: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("Migrate run %d: %v", i, err)
		}
	}

	cols, err := store.columns(ctx, "classifications")
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	for _, name := range []string{"recyclable", "recyclable_confidence", "eco_score", "source_model"} {
		if !cols[name] {
			t.Errorf("missing column %s", name)
		}
	}

	agg, err := store.Aggregates(ctx, time.Now().Add(-waste.StatsWindow))
	if err != nil {
		t.Fatalf("Aggregates: %v", err)
	}
	if agg.Total != 1 || agg.RecyclableCount != 0 || agg.NonRecyclableCount != 0 || agg.AvgEcoScore != 0 {
		t.Fatalf("legacy row aggregated wrongly: %+v", agg)
	}

	history, err := store.RecentClassifications(ctx, 20)
	if err != nil {
		t.Fatalf("RecentClassifications: %v", err)
	}
	if len(history) != 1 || history[0].PredictedClass != "paper" {
		t.Fatalf("unexpected history %+v", history)
	}
	if !history[0].Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("legacy timestamp = %v", history[0].Timestamp)
	}

	legacy, err := store.GetClassification(ctx, history[0].ID)
	if err != nil {
		t.Fatalf("GetClassification on legacy row: %v", err)
	}
	want := models.Predictions{
		{Label: "paper", Percent: 88.5},
		{Label: "metal", Percent: 7.25},
		{Label: "glass", Percent: 4.25},
	}
	if len(legacy.AllPredictions) != len(want) {
		t.Fatalf("legacy predictions = %+v", legacy.AllPredictions)
	}
	for i := range want {
		if legacy.AllPredictions[i] != want[i] {
			t.Errorf("prediction %d = %+v, want %+v", i, legacy.AllPredictions[i], want[i])
		}
	}
}

func TestGetClassificationToleratesUnreadablePredictions(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	res, err := store.db.ExecContext(ctx, `
		INSERT INTO classifications (image_path, predicted_class, confidence, all_predictions, timestamp)
		VALUES ('static/uploads/bad.jpg', 'trash', 51, 'not a dict', '2024-05-01 10:00:00.000000')`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, _ := res.LastInsertId()

	c, err := store.GetClassification(ctx, id)
	if err != nil {
		t.Fatalf("GetClassification: %v", err)
	}
	if c.PredictedClass != "trash" || len(c.AllPredictions) != 0 {
		t.Fatalf("unexpected record %+v", c)
	}
}
