package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Anuj2862/EcoSort-AI/metrics"
	"github.com/Anuj2862/EcoSort-AI/utils"
)

// ServingClient calls a model server's REST predict endpoint.
type ServingClient struct {
	name      string
	serverURL string
	model     string
	labels    []string
	imageSize int
	client    *http.Client
	cb        *gobreaker.CircuitBreaker[[]float64]
}

type ServingOptions struct {
	Name      string
	URL       string
	Model     string
	Labels    []string
	ImageSize int
	Timeout   time.Duration
}

type predictRequest struct {
	Instances [][][][3]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewServingClient creates a client for one model server.
func NewServingClient(opts ServingOptions) *ServingClient {
	if opts.ImageSize <= 0 {
		opts.ImageSize = 224
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	labels := make([]string, len(opts.Labels))
	copy(labels, opts.Labels)

	sc := &ServingClient{
		name:      opts.Name,
		serverURL: strings.TrimRight(opts.URL, "/"),
		model:     opts.Model,
		labels:    labels,
		imageSize: opts.ImageSize,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}
	sc.cb = gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        "classifier-" + opts.Model,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			utils.GetLogger().Warn("classifier circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return sc
}

func (sc *ServingClient) Name() string { return sc.name }

func (sc *ServingClient) Labels() []string {
	labels := make([]string, len(sc.labels))
	copy(labels, sc.labels)
	return labels
}

// HealthCheck verifies the model server is up and serving the model.
func (sc *ServingClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.modelURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := sc.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Predict resizes img to the model input size and returns the model's
// probability vector, one entry per label.
func (sc *ServingClient) Predict(ctx context.Context, img image.Image) ([]float64, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	started := time.Now()
	probs, err := sc.cb.Execute(func() ([]float64, error) {
		return sc.predict(ctx, img)
	})
	metrics.ObserveClassifier(sc.name, time.Since(started), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sc.name, err)
	}
	return probs, nil
}

func (sc *ServingClient) predict(ctx context.Context, img image.Image) ([]float64, error) {
	payload, err := json.Marshal(predictRequest{
		Instances: [][][][3]float32{Tensor(img, sc.imageSize)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.modelURL()+":predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var predResp predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if predResp.Error != "" {
		return nil, fmt.Errorf("model server error: %s", predResp.Error)
	}
	if len(predResp.Predictions) == 0 {
		return nil, errors.New("received empty predictions")
	}

	probs := predResp.Predictions[0]
	if len(probs) != len(sc.labels) {
		return nil, fmt.Errorf("received %d probabilities for %d labels", len(probs), len(sc.labels))
	}
	return probs, nil
}

func (sc *ServingClient) modelURL() string {
	return sc.serverURL + "/v1/models/" + sc.model
}
