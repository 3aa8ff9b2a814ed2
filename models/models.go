package models

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// LabelScore is one entry of a classifier's output, in percent.
type LabelScore struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

// Predictions is an ordered label -> percent mapping. It encodes as a JSON
// object whose keys keep the slice order.
type Predictions []LabelScore

// SortByPercent orders entries by descending percent, then label.
func (p Predictions) SortByPercent() {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Percent != p[j].Percent {
			return p[i].Percent > p[j].Percent
		}
		return p[i].Label < p[j].Label
	})
}

// Map returns the predictions as a plain map.
func (p Predictions) Map() map[string]float64 {
	out := make(map[string]float64, len(p))
	for _, s := range p {
		out[s.Label] = s.Percent
	}
	return out
}

func (p Predictions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.Percent)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Predictions) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Predictions, 0, len(raw))
	for label, percent := range raw {
		out = append(out, LabelScore{Label: label, Percent: percent})
	}
	out.SortByPercent()
	*p = out
	return nil
}

// ParsePredictions reads a stored all_predictions column. Besides JSON it
// accepts the Python dict repr older rows hold, e.g. {'paper': 88.5}.
func ParsePredictions(raw string) (Predictions, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Predictions{}, nil
	}
	var p Predictions
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		return p, nil
	}
	return parseDictRepr(raw)
}

func parseDictRepr(raw string) (Predictions, error) {
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return nil, fmt.Errorf("unrecognized predictions format: %q", raw)
	}
	body := raw[1 : len(raw)-1]

	out := Predictions{}
	for i := 0; ; {
		for i < len(body) && (body[i] == ' ' || body[i] == ',') {
			i++
		}
		if i >= len(body) {
			break
		}

		quote := body[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("expected quoted key at offset %d in %q", i, raw)
		}
		var key strings.Builder
		i++
		for i < len(body) && body[i] != quote {
			if body[i] == '\\' && i+1 < len(body) {
				i++
			}
			key.WriteByte(body[i])
			i++
		}
		if i >= len(body) {
			return nil, fmt.Errorf("unterminated key in %q", raw)
		}
		i++

		colon := strings.IndexByte(body[i:], ':')
		if colon < 0 || strings.TrimSpace(body[i:i+colon]) != "" {
			return nil, fmt.Errorf("expected ':' after key %q", key.String())
		}
		i += colon + 1

		end := strings.IndexByte(body[i:], ',')
		if end < 0 {
			end = len(body) - i
		}
		value := strings.TrimSpace(body[i : i+end])
		i += end

		// numpy scalars print as np.float64(1.5)
		if open := strings.IndexByte(value, '('); open >= 0 && strings.HasSuffix(value, ")") {
			value = value[open+1 : len(value)-1]
		}
		percent, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", key.String(), err)
		}
		out = append(out, LabelScore{Label: key.String(), Percent: percent})
	}
	out.SortByPercent()
	return out, nil
}

// Classification is one persisted inference result. Records are append-only.
type Classification struct {
	ID                   int64       `json:"id" bson:"_id"`
	ImagePath            string      `json:"image_path" bson:"image_path"`
	PredictedClass       string      `json:"predicted_class" bson:"predicted_class"`
	Confidence           float64     `json:"confidence" bson:"confidence"`
	AllPredictions       Predictions `json:"all_predictions" bson:"-"`
	Recyclable           bool        `json:"recyclable" bson:"recyclable"`
	RecyclableConfidence float64     `json:"recyclable_confidence" bson:"recyclable_confidence"`
	EcoScore             int         `json:"eco_score" bson:"eco_score"`
	SourceModel          string      `json:"source_model,omitempty" bson:"source_model"`
	Timestamp            time.Time   `json:"timestamp" bson:"timestamp"`
}

// HistoryEntry is the trimmed record returned by the history endpoint.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	ImagePath      string    `json:"image_path"`
	PredictedClass string    `json:"predicted_class"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

// Achievement records the first time an achievement threshold was reached.
type Achievement struct {
	ID          string    `json:"id" bson:"achievement_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	UnlockedAt  time.Time `json:"unlocked_at" bson:"unlocked_at"`
}

// Aggregates are the raw counters a store computes over the classification log.
type Aggregates struct {
	Total              int
	ByCategory         map[string]int
	SinceCount         int
	AvgConfidence      float64
	AchievementsCount  int
	RecyclableCount    int
	NonRecyclableCount int
	AvgEcoScore        float64
}

// Statistics is the derived view served by /api/stats.
type Statistics struct {
	Total              int            `json:"total"`
	ByCategory         map[string]int `json:"by_category"`
	ThisWeek           int            `json:"this_week"`
	AvgConfidence      float64        `json:"avg_confidence"`
	AchievementsCount  int            `json:"achievements_count"`
	RecyclableCount    int            `json:"recyclable_count"`
	NonRecyclableCount int            `json:"non_recyclable_count"`
	RecyclabilityRate  float64        `json:"recyclability_rate"`
	AvgEcoScore        float64        `json:"avg_eco_score"`
}
