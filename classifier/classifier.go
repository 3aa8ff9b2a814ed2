// Package classifier talks to the out-of-process image classifiers.
//
// Each classifier is a model server exposing a TensorFlow Serving style REST
// API. The service holds zero, one or two of them; callers branch on how many
// were reachable at startup.
package classifier

import (
	"context"
	"image"
)

// Classifier returns a probability vector over a fixed label set.
type Classifier interface {
	Name() string
	Labels() []string
	Predict(ctx context.Context, img image.Image) ([]float64, error)
}

// Info describes a loaded classifier for the model info endpoint.
type Info struct {
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// Mode names the ensemble mode for the given number of classifiers.
func Mode(count int) string {
	switch {
	case count >= 2:
		return "dual"
	case count == 1:
		return "single"
	default:
		return "none"
	}
}

// Describe lists name and labels of each classifier in order.
func Describe(classifiers []Classifier) []Info {
	infos := make([]Info, 0, len(classifiers))
	for _, c := range classifiers {
		infos = append(infos, Info{Name: c.Name(), Labels: c.Labels()})
	}
	return infos
}
