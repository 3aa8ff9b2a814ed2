package classifier

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/Anuj2862/EcoSort-AI/config"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func near(got, want float32) bool {
	d := got - want
	return d < 0.01 && d > -0.01
}

func newModelServer(t *testing.T, model string, probs []float64, calls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/"+model, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model_version_status":[{"version":"1","state":"AVAILABLE"}]}`))
	})
	mux.HandleFunc("/v1/models/"+model+":predict", func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Instances) != 1 || len(req.Instances[0]) != 8 || len(req.Instances[0][0]) != 8 {
			http.Error(w, "unexpected tensor shape", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(predictResponse{Predictions: [][]float64{probs}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTensorScalesPixels(t *testing.T) {
	t.Parallel()

	tensor := Tensor(solidImage(32, 16, color.RGBA{R: 255, G: 0, B: 51, A: 255}), 4)
	if len(tensor) != 4 || len(tensor[0]) != 4 {
		t.Fatalf("unexpected tensor shape %dx%d", len(tensor), len(tensor[0]))
	}
	px := tensor[2][3]
	if !near(px[0], 1) || !near(px[1], 0) || !near(px[2], 0.2) {
		t.Fatalf("unexpected pixel %v", px)
	}
}

func TestTensorResizesWithoutBlending(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{B: 255, A: 255})

	tensor := Tensor(img, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := [3]float32{1, 0, 0}
			if x >= 2 {
				want = [3]float32{0, 0, 1}
			}
			if tensor[y][x] != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, tensor[y][x], want)
			}
		}
	}
}

func TestServingClientPredict(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := newModelServer(t, "waste_model1", []float64{0.1, 0.7, 0.1, 0.05, 0.05}, &calls)
	client := NewServingClient(ServingOptions{
		Name:      "Model 1",
		URL:       srv.URL + "/",
		Model:     "waste_model1",
		Labels:    []string{"glass", "metal", "paper", "plastic", "trash"},
		ImageSize: 8,
	})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	probs, err := client.Predict(context.Background(), solidImage(20, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(probs) != 5 || probs[1] != 0.7 {
		t.Fatalf("unexpected probabilities %v", probs)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one predict call, got %d", calls)
	}
}

func TestServingClientRejectsWrongLength(t *testing.T) {
	t.Parallel()

	srv := newModelServer(t, "waste_model2", []float64{0.5, 0.5}, nil)
	client := NewServingClient(ServingOptions{
		Name:      "Model 2",
		URL:       srv.URL,
		Model:     "waste_model2",
		Labels:    []string{"food_waste", "e_waste", "textiles"},
		ImageSize: 8,
	})

	_, err := client.Predict(context.Background(), solidImage(4, 4, color.RGBA{A: 255}))
	if err == nil || !strings.Contains(err.Error(), "2 probabilities for 3 labels") {
		t.Fatalf("expected length mismatch error, got %v", err)
	}
}

func TestServingClientServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := NewServingClient(ServingOptions{Name: "Model 1", URL: srv.URL, Model: "m", Labels: []string{"a"}, ImageSize: 8})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected unhealthy error")
	}
	if _, err := client.Predict(context.Background(), solidImage(4, 4, color.RGBA{A: 255})); err == nil {
		t.Fatalf("expected predict error")
	}
}

func TestLoadAllSkipsUnreachableServers(t *testing.T) {
	t.Parallel()

	srv := newModelServer(t, "waste_model1", []float64{1, 0, 0, 0, 0}, nil)
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	cfg := config.Config{
		ImageSize: 8,
		ClassifierA: config.ClassifierConfig{
			Name: "Model 1", URL: srv.URL, Model: "waste_model1",
			Labels: []string{"glass", "metal", "paper", "plastic", "trash"},
		},
		ClassifierB: config.ClassifierConfig{
			Name: "Model 2", URL: downURL, Model: "waste_model2",
			Labels: []string{"food_waste", "e_waste", "textiles", "hazardous", "medical"},
		},
	}

	loaded := LoadAll(context.Background(), cfg)
	if len(loaded) != 1 || loaded[0].Name() != "Model 1" {
		t.Fatalf("expected only Model 1 to load, got %d", len(loaded))
	}
	if Mode(len(loaded)) != "single" {
		t.Fatalf("expected single mode, got %s", Mode(len(loaded)))
	}
	infos := Describe(loaded)
	if len(infos) != 1 || len(infos[0].Labels) != 5 {
		t.Fatalf("unexpected describe output %+v", infos)
	}
}

func TestMode(t *testing.T) {
	t.Parallel()

	if Mode(0) != "none" || Mode(1) != "single" || Mode(2) != "dual" {
		t.Fatalf("unexpected modes")
	}
}
