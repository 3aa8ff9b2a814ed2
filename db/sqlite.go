package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
	"github.com/mdobak/go-xerrors"

	"github.com/Anuj2862/EcoSort-AI/models"
	"github.com/Anuj2862/EcoSort-AI/utils"
	"github.com/Anuj2862/EcoSort-AI/waste"
)

// sqliteTimeLayout sorts lexically and matches rows written by older
// versions of the app.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" && !strings.HasPrefix(dbPath, "file:") {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}

	return &SQLiteClient{db: db}, nil
}

func (s *SQLiteClient) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the tables and adds columns missing from databases
// created before recyclability was tracked.
func (s *SQLiteClient) Migrate(ctx context.Context) error {
	createClassificationsTable := `
    CREATE TABLE IF NOT EXISTS classifications (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        image_path TEXT,
        predicted_class TEXT,
        confidence REAL,
        all_predictions TEXT,
        recyclable BOOLEAN,
        recyclable_confidence REAL,
        eco_score INTEGER,
        source_model TEXT,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `

	createAchievementsTable := `
    CREATE TABLE IF NOT EXISTS achievements (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        achievement_id TEXT UNIQUE,
        name TEXT,
        description TEXT,
        unlocked_at DATETIME
    );
    `

	if _, err := s.db.ExecContext(ctx, createClassificationsTable); err != nil {
		return fmt.Errorf("error creating classifications table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createAchievementsTable); err != nil {
		return fmt.Errorf("error creating achievements table: %w", err)
	}

	existing, err := s.columns(ctx, "classifications")
	if err != nil {
		return err
	}

	added := []struct{ name, ddl string }{
		{"recyclable", "ALTER TABLE classifications ADD COLUMN recyclable BOOLEAN"},
		{"recyclable_confidence", "ALTER TABLE classifications ADD COLUMN recyclable_confidence REAL"},
		{"eco_score", "ALTER TABLE classifications ADD COLUMN eco_score INTEGER"},
		{"source_model", "ALTER TABLE classifications ADD COLUMN source_model TEXT"},
	}
	for _, col := range added {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("error adding column %s: %w", col.name, err)
		}
		utils.GetLogger().InfoContext(ctx, "added classifications column", "column", col.name)
	}

	_, err = s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_classifications_timestamp ON classifications(timestamp)")
	if err != nil {
		return fmt.Errorf("error creating timestamp index: %w", err)
	}
	return nil
}

func (s *SQLiteClient) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("error reading %s columns: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning column name: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (s *SQLiteClient) InsertClassification(ctx context.Context, c *models.Classification) (int64, error) {
	predictionsJSON, err := json.Marshal(c.AllPredictions)
	if err != nil {
		return 0, fmt.Errorf("error marshaling predictions: %w", err)
	}

	c.Timestamp = storedTime(c.Timestamp)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO classifications (
			image_path, predicted_class, confidence, all_predictions,
			recyclable, recyclable_confidence, eco_score, source_model, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ImagePath,
		c.PredictedClass,
		c.Confidence,
		string(predictionsJSON),
		c.Recyclable,
		c.RecyclableConfidence,
		c.EcoScore,
		c.SourceModel,
		c.Timestamp.Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("error storing classification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading classification id: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *SQLiteClient) RecentClassifications(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_path, predicted_class, confidence, timestamp
		FROM classifications
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying classifications: %w", err)
	}
	defer rows.Close()

	history := []models.HistoryEntry{}
	for rows.Next() {
		var (
			h          models.HistoryEntry
			imagePath  sql.NullString
			class      sql.NullString
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&h.ID, &imagePath, &class, &confidence, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning classification: %w", err)
		}
		h.ImagePath = imagePath.String
		h.PredictedClass = class.String
		h.Confidence = confidence.Float64
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *SQLiteClient) CountClassifications(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classifications").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting classifications: %w", err)
	}
	return count, nil
}

func (s *SQLiteClient) UnlockAchievement(ctx context.Context, def waste.AchievementDefinition, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO achievements (achievement_id, name, description, unlocked_at)
		VALUES (?, ?, ?, ?)`,
		def.ID, def.Name, def.Description, storedTime(at).Format(sqliteTimeLayout))
	if err != nil {
		return false, fmt.Errorf("error unlocking achievement %s: %w", def.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteClient) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT achievement_id, name, description, unlocked_at
		FROM achievements
		ORDER BY unlocked_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying achievements: %w", err)
	}
	defer rows.Close()

	achievements := []models.Achievement{}
	for rows.Next() {
		var (
			a           models.Achievement
			name        sql.NullString
			description sql.NullString
			unlockedAt  sql.NullTime
		)
		if err := rows.Scan(&a.ID, &name, &description, &unlockedAt); err != nil {
			return nil, fmt.Errorf("error scanning achievement: %w", err)
		}
		a.Name = name.String
		a.Description = description.String
		a.UnlockedAt = unlockedAt.Time
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

func (s *SQLiteClient) Aggregates(ctx context.Context, since time.Time) (models.Aggregates, error) {
	agg := models.Aggregates{ByCategory: map[string]int{}}

	var (
		avgConfidence sql.NullFloat64
		avgEcoScore   sql.NullFloat64
		recyclable    sql.NullInt64
		nonRecyclable sql.NullInt64
		sinceCount    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			AVG(confidence),
			SUM(CASE WHEN recyclable = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN recyclable = 0 THEN 1 ELSE 0 END),
			AVG(eco_score),
			SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END)
		FROM classifications`,
		storedTime(since).Format(sqliteTimeLayout),
	).Scan(&agg.Total, &avgConfidence, &recyclable, &nonRecyclable, &avgEcoScore, &sinceCount)
	if err != nil {
		return models.Aggregates{}, fmt.Errorf("error aggregating classifications: %w", err)
	}
	agg.AvgConfidence = avgConfidence.Float64
	agg.AvgEcoScore = avgEcoScore.Float64
	agg.RecyclableCount = int(recyclable.Int64)
	agg.NonRecyclableCount = int(nonRecyclable.Int64)
	agg.SinceCount = int(sinceCount.Int64)

	rows, err := s.db.QueryContext(ctx, `
		SELECT predicted_class, COUNT(*)
		FROM classifications
		GROUP BY predicted_class`)
	if err != nil {
		return models.Aggregates{}, fmt.Errorf("error grouping classifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			class sql.NullString
			count int
		)
		if err := rows.Scan(&class, &count); err != nil {
			return models.Aggregates{}, fmt.Errorf("error scanning category: %w", err)
		}
		agg.ByCategory[class.String] += count
	}
	if err := rows.Err(); err != nil {
		return models.Aggregates{}, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM achievements").Scan(&agg.AchievementsCount)
	if err != nil {
		return models.Aggregates{}, fmt.Errorf("error counting achievements: %w", err)
	}
	return agg, nil
}

// GetClassification loads a full record by id.
func (s *SQLiteClient) GetClassification(ctx context.Context, id int64) (models.Classification, error) {
	var (
		c               models.Classification
		imagePath       sql.NullString
		class           sql.NullString
		confidence      sql.NullFloat64
		storedPredictions sql.NullString
		recyclable      sql.NullBool
		recyclableConf  sql.NullFloat64
		ecoScore        sql.NullInt64
		sourceModel     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, image_path, predicted_class, confidence, all_predictions,
		       recyclable, recyclable_confidence, eco_score, source_model, timestamp
		FROM classifications WHERE id = ?`, id).Scan(
		&c.ID, &imagePath, &class, &confidence, &storedPredictions,
		&recyclable, &recyclableConf, &ecoScore, &sourceModel, &c.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Classification{}, ErrNotFound
		}
		return models.Classification{}, fmt.Errorf("failed to retrieve classification: %w", err)
	}

	c.ImagePath = imagePath.String
	c.PredictedClass = class.String
	c.Confidence = confidence.Float64
	c.Recyclable = recyclable.Bool
	c.RecyclableConfidence = recyclableConf.Float64
	c.EcoScore = int(ecoScore.Int64)
	c.SourceModel = sourceModel.String
	c.AllPredictions = models.Predictions{}
	if storedPredictions.Valid {
		predictions, err := models.ParsePredictions(storedPredictions.String)
		if err != nil {
			utils.GetLogger().WarnContext(ctx, "unreadable stored predictions",
				slog.Int64("id", c.ID),
				slog.Any("error", xerrors.New(err)))
		} else {
			c.AllPredictions = predictions
		}
	}
	return c, nil
}
