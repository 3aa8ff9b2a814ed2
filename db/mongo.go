package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Anuj2862/EcoSort-AI/models"
	"github.com/Anuj2862/EcoSort-AI/waste"
)

const (
	classificationsCollection = "classifications"
	achievementsCollection    = "achievements"
	countersCollection        = "counters"
)

type MongoClient struct {
	client *mongo.Client
	db     *mongo.Database
}

// classificationDoc is the stored shape; predictions are kept as a
// sub-document keyed by label.
type classificationDoc struct {
	ID                   int64              `bson:"_id"`
	ImagePath            string             `bson:"image_path"`
	PredictedClass       string             `bson:"predicted_class"`
	Confidence           float64            `bson:"confidence"`
	AllPredictions       map[string]float64 `bson:"all_predictions"`
	Recyclable           *bool              `bson:"recyclable,omitempty"`
	RecyclableConfidence *float64           `bson:"recyclable_confidence,omitempty"`
	EcoScore             *int               `bson:"eco_score,omitempty"`
	SourceModel          string             `bson:"source_model,omitempty"`
	Timestamp            time.Time          `bson:"timestamp"`
}

func NewMongoClient(ctx context.Context, uri, database string) (*MongoClient, error) {
	if uri == "" {
		return nil, errors.New("mongo URI is required")
	}
	if database == "" {
		database = "ecosort"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	return &MongoClient{client: client, db: client.Database(database)}, nil
}

func (m *MongoClient) Close() error {
	if m.client != nil {
		return m.client.Disconnect(context.Background())
	}
	return nil
}

func (m *MongoClient) Migrate(ctx context.Context) error {
	_, err := m.db.Collection(achievementsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "achievement_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error creating achievement index: %w", err)
	}

	_, err = m.db.Collection(classificationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("error creating timestamp index: %w", err)
	}
	return nil
}

// nextID returns the next value of a monotonic counter.
func (m *MongoClient) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("error incrementing %s counter: %w", name, err)
	}
	return counter.Seq, nil
}

func (m *MongoClient) InsertClassification(ctx context.Context, c *models.Classification) (int64, error) {
	id, err := m.nextID(ctx, classificationsCollection)
	if err != nil {
		return 0, err
	}

	c.ID = id
	c.Timestamp = storedTime(c.Timestamp)
	recyclable := c.Recyclable
	recyclableConf := c.RecyclableConfidence
	ecoScore := c.EcoScore

	doc := classificationDoc{
		ID:                   id,
		ImagePath:            c.ImagePath,
		PredictedClass:       c.PredictedClass,
		Confidence:           c.Confidence,
		AllPredictions:       c.AllPredictions.Map(),
		Recyclable:           &recyclable,
		RecyclableConfidence: &recyclableConf,
		EcoScore:             &ecoScore,
		SourceModel:          c.SourceModel,
		Timestamp:            c.Timestamp,
	}
	if _, err := m.db.Collection(classificationsCollection).InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("error storing classification: %w", err)
	}
	return id, nil
}

func (m *MongoClient) GetClassification(ctx context.Context, id int64) (models.Classification, error) {
	var doc classificationDoc
	err := m.db.Collection(classificationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Classification{}, ErrNotFound
		}
		return models.Classification{}, fmt.Errorf("failed to retrieve classification: %w", err)
	}

	c := models.Classification{
		ID:             doc.ID,
		ImagePath:      doc.ImagePath,
		PredictedClass: doc.PredictedClass,
		Confidence:     doc.Confidence,
		SourceModel:    doc.SourceModel,
		Timestamp:      doc.Timestamp.UTC(),
	}
	for label, pct := range doc.AllPredictions {
		c.AllPredictions = append(c.AllPredictions, models.LabelScore{Label: label, Percent: pct})
	}
	c.AllPredictions.SortByPercent()
	if doc.Recyclable != nil {
		c.Recyclable = *doc.Recyclable
	}
	if doc.RecyclableConfidence != nil {
		c.RecyclableConfidence = *doc.RecyclableConfidence
	}
	if doc.EcoScore != nil {
		c.EcoScore = *doc.EcoScore
	}
	return c, nil
}

func (m *MongoClient) RecentClassifications(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"image_path": 1, "predicted_class": 1, "confidence": 1, "timestamp": 1})

	cursor, err := m.db.Collection(classificationsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying classifications: %w", err)
	}
	defer cursor.Close(ctx)

	history := []models.HistoryEntry{}
	for cursor.Next(ctx) {
		var doc classificationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding classification: %w", err)
		}
		history = append(history, models.HistoryEntry{
			ID:             doc.ID,
			ImagePath:      doc.ImagePath,
			PredictedClass: doc.PredictedClass,
			Confidence:     doc.Confidence,
			Timestamp:      doc.Timestamp.UTC(),
		})
	}
	return history, cursor.Err()
}

func (m *MongoClient) CountClassifications(ctx context.Context) (int, error) {
	count, err := m.db.Collection(classificationsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting classifications: %w", err)
	}
	return int(count), nil
}

func (m *MongoClient) UnlockAchievement(ctx context.Context, def waste.AchievementDefinition, at time.Time) (bool, error) {
	_, err := m.db.Collection(achievementsCollection).InsertOne(ctx, models.Achievement{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		UnlockedAt:  storedTime(at),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("error unlocking achievement %s: %w", def.ID, err)
	}
	return true, nil
}

func (m *MongoClient) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "unlocked_at", Value: -1}})
	cursor, err := m.db.Collection(achievementsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying achievements: %w", err)
	}
	defer cursor.Close(ctx)

	achievements := []models.Achievement{}
	if err := cursor.All(ctx, &achievements); err != nil {
		return nil, fmt.Errorf("error decoding achievements: %w", err)
	}
	for i := range achievements {
		achievements[i].UnlockedAt = achievements[i].UnlockedAt.UTC()
	}
	return achievements, nil
}

func (m *MongoClient) Aggregates(ctx context.Context, since time.Time) (models.Aggregates, error) {
	agg := models.Aggregates{ByCategory: map[string]int{}}
	coll := m.db.Collection(classificationsCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_confidence", Value: bson.D{{Key: "$avg", Value: "$confidence"}}},
			{Key: "avg_eco_score", Value: bson.D{{Key: "$avg", Value: "$eco_score"}}},
			{Key: "recyclable", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$recyclable", true}}}, 1, 0}},
			}}}},
			{Key: "non_recyclable", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$recyclable", false}}}, 1, 0}},
			}}}},
			{Key: "since", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$gte", Value: bson.A{"$timestamp", storedTime(since)}}}, 1, 0}},
			}}}},
		}}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.Aggregates{}, fmt.Errorf("error aggregating classifications: %w", err)
	}
	var totals []struct {
		Total         int      `bson:"total"`
		AvgConfidence *float64 `bson:"avg_confidence"`
		AvgEcoScore   *float64 `bson:"avg_eco_score"`
		Recyclable    int      `bson:"recyclable"`
		NonRecyclable int      `bson:"non_recyclable"`
		Since         int      `bson:"since"`
	}
	if err := cursor.All(ctx, &totals); err != nil {
		return models.Aggregates{}, fmt.Errorf("error decoding aggregates: %w", err)
	}
	if len(totals) == 1 {
		t := totals[0]
		agg.Total = t.Total
		agg.RecyclableCount = t.Recyclable
		agg.NonRecyclableCount = t.NonRecyclable
		agg.SinceCount = t.Since
		if t.AvgConfidence != nil {
			agg.AvgConfidence = *t.AvgConfidence
		}
		if t.AvgEcoScore != nil {
			agg.AvgEcoScore = *t.AvgEcoScore
		}
	}

	cursor, err = coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$predicted_class"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return models.Aggregates{}, fmt.Errorf("error grouping classifications: %w", err)
	}
	var groups []struct {
		Class string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return models.Aggregates{}, fmt.Errorf("error decoding categories: %w", err)
	}
	for _, g := range groups {
		agg.ByCategory[g.Class] += g.Count
	}

	achievements, err := m.db.Collection(achievementsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return models.Aggregates{}, fmt.Errorf("error counting achievements: %w", err)
	}
	agg.AchievementsCount = int(achievements)
	return agg, nil
}

// Drop removes every collection used by the store.
func (m *MongoClient) Drop(ctx context.Context) error {
	if err := m.db.Drop(ctx); err != nil {
		return fmt.Errorf("error dropping database: %w", err)
	}
	return nil
}
