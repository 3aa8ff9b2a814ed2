package waste

import (
	"errors"
	"fmt"

	"github.com/Anuj2862/EcoSort-AI/models"
)

// ErrNoClassifier is returned when arbitration has nothing to choose from.
var ErrNoClassifier = errors.New("no classifier available")

// ModelOutput is one classifier's probability vector over its own label set.
type ModelOutput struct {
	Model  string
	Labels []string
	Probs  []float64
}

// TopPrediction is the arg-max of a single ModelOutput.
type TopPrediction struct {
	Model       string  `json:"model"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Decision is the outcome of ensemble arbitration.
type Decision struct {
	Label       string
	Confidence  float64
	SourceModel string
	Predictions models.Predictions
	Tops        []TopPrediction
}

// Top returns the highest-probability label of out. The earliest label wins
// a tie.
func (out ModelOutput) Top() (TopPrediction, error) {
	if len(out.Labels) == 0 {
		return TopPrediction{}, fmt.Errorf("model %s has an empty label set", out.Model)
	}
	if len(out.Labels) != len(out.Probs) {
		return TopPrediction{}, fmt.Errorf("model %s returned %d probabilities for %d labels",
			out.Model, len(out.Probs), len(out.Labels))
	}

	best := 0
	for i := 1; i < len(out.Probs); i++ {
		if out.Probs[i] > out.Probs[best] {
			best = i
		}
	}
	return TopPrediction{Model: out.Model, Label: out.Labels[best], Probability: out.Probs[best]}, nil
}

// SelectEnsemble picks the final label across classifier outputs given in
// priority order. Each output's top prediction competes on raw probability;
// a later output only wins with a strictly higher value, so the first model
// wins ties. A single output is used directly.
func SelectEnsemble(outputs []ModelOutput) (Decision, error) {
	if len(outputs) == 0 {
		return Decision{}, ErrNoClassifier
	}

	tops := make([]TopPrediction, 0, len(outputs))
	var predictions models.Predictions
	for _, out := range outputs {
		top, err := out.Top()
		if err != nil {
			return Decision{}, err
		}
		tops = append(tops, top)
		for i, label := range out.Labels {
			predictions = append(predictions, models.LabelScore{
				Label:   label,
				Percent: round(out.Probs[i]*100, 2),
			})
		}
	}
	predictions.SortByPercent()

	chosen := tops[0]
	for _, top := range tops[1:] {
		if top.Probability > chosen.Probability {
			chosen = top
		}
	}

	source := chosen.Model
	if len(outputs) == 1 {
		source += " (Single)"
	}

	return Decision{
		Label:       chosen.Label,
		Confidence:  clampFloat(chosen.Probability*100, 0, 100),
		SourceModel: source,
		Predictions: predictions,
		Tops:        tops,
	}, nil
}
