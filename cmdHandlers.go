package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Anuj2862/EcoSort-AI/chat"
	"github.com/Anuj2862/EcoSort-AI/classifier"
	"github.com/Anuj2862/EcoSort-AI/config"
	"github.com/Anuj2862/EcoSort-AI/db"
	"github.com/Anuj2862/EcoSort-AI/metrics"
	"github.com/Anuj2862/EcoSort-AI/models"
	"github.com/Anuj2862/EcoSort-AI/utils"
	"github.com/Anuj2862/EcoSort-AI/waste"
)

const maxHistoryLimit = 500

type apiError struct {
	Error string `json:"error"`
}

type predictResponse struct {
	Label                string                  `json:"label"`
	Confidence           float64                 `json:"confidence"`
	AllPredictions       models.Predictions      `json:"all_predictions"`
	Recyclable           bool                    `json:"recyclable"`
	RecyclableConfidence float64                 `json:"recyclable_confidence"`
	RecyclabilityReason  string                  `json:"recyclability_reason"`
	EcoScore             int                     `json:"eco_score"`
	ImagePath            string                  `json:"image_path"`
	SourceModel          string                  `json:"source_model"`
	QualityCheck         waste.QualityAssessment `json:"quality_check"`
	NewAchievements      []models.Achievement    `json:"new_achievements"`
	Stats                models.Statistics       `json:"stats"`
}

type modelsResponse struct {
	Mode   string            `json:"mode"`
	Models []classifier.Info `json:"models"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// eventPublisher pushes results to connected realtime clients.
type eventPublisher interface {
	publishClassification(resp predictResponse)
	publishAchievements(unlocked []models.Achievement)
}

type app struct {
	cfg         config.Config
	store       db.Store
	classifiers []classifier.Classifier
	tracker     *waste.Tracker
	coach       *chat.Coach
	events      eventPublisher
}

func newApp(cfg config.Config, store db.Store, classifiers []classifier.Classifier, coach *chat.Coach) *app {
	return &app{
		cfg:         cfg,
		store:       store,
		classifiers: classifiers,
		tracker:     waste.NewTracker(store),
		coach:       coach,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Error: message})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// loadStatistics reads the store aggregates for the trailing week ending at now.
func loadStatistics(ctx context.Context, store db.Store, now time.Time) (models.Statistics, error) {
	agg, err := store.Aggregates(ctx, waste.WeekStart(now))
	if err != nil {
		return models.Statistics{}, err
	}
	return waste.BuildStatistics(agg), nil
}

// readUpload returns the bytes and client file name of the "file" part, or
// the message for a 400 response.
func readUpload(r *http.Request) ([]byte, string, string) {
	file, header, err := r.FormFile("file")
	if err != nil {
		// Parts without a file name are parsed as plain values.
		if r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0 {
			return nil, "", "No file selected"
		}
		return nil, "", "No file uploaded"
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, "", "No file selected"
	}
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return nil, "", "No file selected"
	}
	return data, header.Filename, ""
}

func (a *app) saveUpload(data []byte, filename string) (string, error) {
	if err := utils.CreateFolder(a.cfg.UploadDir); err != nil {
		return "", fmt.Errorf("error creating upload folder: %w", err)
	}
	base := filepath.Base(filepath.Clean("/" + filename))
	unique := strings.ReplaceAll(uuid.New().String(), "-", "") + "_" + base
	path := filepath.Join(a.cfg.UploadDir, unique)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("error saving upload: %w", err)
	}
	return filepath.ToSlash(path), nil
}

func (a *app) handlePredict(w http.ResponseWriter, r *http.Request) {
	logger := utils.GetLogger()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, int64(a.cfg.MaxUploadMB)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large (max %d MB)", a.cfg.MaxUploadMB))
			return
		}
		writeJSONError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	data, filename, msg := readUpload(r)
	if msg != "" {
		writeJSONError(w, http.StatusBadRequest, msg)
		return
	}

	imagePath, err := a.saveUpload(data, filename)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save upload",
			slog.String("requestID", getRequestID(ctx)),
			slog.Any("error", xerrors.New(err)))
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := a.classify(ctx, data, imagePath, time.Now())
	if err != nil {
		logger.ErrorContext(ctx, "classification failed",
			slog.String("requestID", getRequestID(ctx)),
			slog.String("imagePath", imagePath),
			slog.Any("error", xerrors.New(err)))
		if rmErr := utils.DeleteFile(filepath.FromSlash(imagePath)); rmErr != nil {
			logger.WarnContext(ctx, "failed to remove rejected upload",
				slog.String("imagePath", imagePath),
				slog.Any("error", xerrors.New(rmErr)))
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)

	if a.events != nil {
		a.events.publishClassification(resp)
		if len(resp.NewAchievements) > 0 {
			a.events.publishAchievements(resp.NewAchievements)
		}
	}
}

// classify runs the full pipeline for one stored upload: quality check,
// inference, ensemble, recyclability, persistence, achievements and stats.
func (a *app) classify(ctx context.Context, data []byte, imagePath string, now time.Time) (predictResponse, error) {
	logger := utils.GetLogger()

	if len(a.classifiers) == 0 {
		return predictResponse{}, waste.ErrNoClassifier
	}

	quality := waste.AnalyzeQualityBytes(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return predictResponse{}, fmt.Errorf("unable to decode image: %w", err)
	}

	outputs := make([]waste.ModelOutput, 0, len(a.classifiers))
	for _, c := range a.classifiers {
		probs, err := c.Predict(ctx, img)
		if err != nil {
			return predictResponse{}, fmt.Errorf("inference failed: %w", err)
		}
		outputs = append(outputs, waste.ModelOutput{Model: c.Name(), Labels: c.Labels(), Probs: probs})
	}

	eval, err := waste.Evaluate(quality, outputs)
	if err != nil {
		return predictResponse{}, err
	}
	decision, verdict := eval.Decision, eval.Verdict

	logger.DebugContext(ctx, "ensemble decision",
		slog.String("label", decision.Label),
		slog.String("source", decision.SourceModel),
		slog.Float64("confidence", decision.Confidence),
		slog.Any("tops", decision.Tops))

	record := &models.Classification{
		ImagePath:            imagePath,
		PredictedClass:       decision.Label,
		Confidence:           decision.Confidence,
		AllPredictions:       decision.Predictions,
		Recyclable:           verdict.Recyclable,
		RecyclableConfidence: verdict.Confidence,
		EcoScore:             verdict.EcoScore,
		SourceModel:          decision.SourceModel,
		Timestamp:            now,
	}
	if _, err := a.store.InsertClassification(ctx, record); err != nil {
		return predictResponse{}, fmt.Errorf("failed to save classification: %w", err)
	}
	metrics.RecordClassification(decision.Label, decision.SourceModel, verdict.Recyclable, quality.Score)

	unlocked, err := a.tracker.Check(ctx, now)
	if err != nil {
		return predictResponse{}, fmt.Errorf("failed to check achievements: %w", err)
	}
	for _, ach := range unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(ach.ID).Inc()
		log.Printf("Achievement unlocked: %s", ach.Name)
	}

	stats, err := loadStatistics(ctx, a.store, now)
	if err != nil {
		return predictResponse{}, fmt.Errorf("failed to load statistics: %w", err)
	}

	return predictResponse{
		Label:                decision.Label,
		Confidence:           round2(decision.Confidence),
		AllPredictions:       decision.Predictions,
		Recyclable:           verdict.Recyclable,
		RecyclableConfidence: round2(verdict.Confidence),
		RecyclabilityReason:  verdict.Reason,
		EcoScore:             verdict.EcoScore,
		ImagePath:            imagePath,
		SourceModel:          decision.SourceModel,
		QualityCheck:         quality,
		NewAchievements:      unlocked,
		Stats:                stats,
	}, nil
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := a.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	history, err := a.store.RecentClassifications(ctx, limit)
	if err != nil {
		utils.GetLogger().ErrorContext(ctx, "failed to load history", slog.Any("error", xerrors.New(err)))
		writeJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *app) handleAchievements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	achievements, err := a.store.ListAchievements(ctx)
	if err != nil {
		utils.GetLogger().ErrorContext(ctx, "failed to load achievements", slog.Any("error", xerrors.New(err)))
		writeJSONError(w, http.StatusInternalServerError, "failed to load achievements")
		return
	}
	writeJSON(w, http.StatusOK, achievements)
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := loadStatistics(ctx, a.store, time.Now())
	if err != nil {
		utils.GetLogger().ErrorContext(ctx, "failed to load statistics", slog.Any("error", xerrors.New(err)))
		writeJSONError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *app) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: a.coach.Reply(r.Context(), req)})
}

func (a *app) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelsResponse{
		Mode:   classifier.Mode(len(a.classifiers)),
		Models: classifier.Describe(a.classifiers),
	})
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"mode":            classifier.Mode(len(a.classifiers)),
		"chat_configured": a.coach.Configured(),
	})
}

// newRouter wires the API, metrics, realtime and static routes. socket may
// be nil.
func newRouter(a *app, socket http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}))
	r.Use(prometheusMetrics)

	r.Route("/api", func(r chi.Router) {
		if a.cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(a.cfg.RateLimitPerMinute, time.Minute))
		}
		r.Post("/predict", a.handlePredict)
		r.Get("/history", a.handleHistory)
		r.Get("/achievements", a.handleAchievements)
		r.Get("/stats", a.handleStats)
		r.Post("/chat", a.handleChat)
		r.Get("/models", a.handleModels)
	})

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if socket != nil {
		r.Handle("/socket.io/*", socket)
	}
	r.Handle("/*", http.FileServer(http.Dir(a.cfg.StaticDir)))
	return r
}

func serve(cfg config.Config) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if err := utils.CreateFolder(cfg.UploadDir); err != nil {
		log.Fatalf("failed to create upload folder: %v", err)
	}

	store, err := db.NewStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer store.Close()

	classifiers := classifier.LoadAll(ctx, cfg)
	if len(classifiers) == 0 {
		logger.WarnContext(ctx, "no classifier available, /api/predict will fail until a model server is reachable")
	}

	gen, err := chat.NewGenerator(ctx, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create chat generator", slog.Any("error", xerrors.New(err)))
		gen = nil
	}
	if gen == nil {
		log.Printf("Chat provider %s not configured, the coach will answer with fallback replies", cfg.ChatProvider)
	}

	a := newApp(cfg, store, classifiers, chat.NewCoach(gen, cfg.ChatTimeout))

	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}
	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	controller := newSocketController(server, store, classifiers)
	controller.register(server)
	a.events = controller

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTP(cfg, newRouter(a, server))
}

func serveHTTP(cfg config.Config, handler http.Handler) {
	addr := ":" + cfg.Port

	if strings.EqualFold(cfg.Protocol, "https") {
		httpsServer := &http.Server{
			Addr: addr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		if cfg.CertKey == "" || cfg.CertFile == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", addr)
		if err := httpsServer.ListenAndServeTLS(cfg.CertFile, cfg.CertKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
		return
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Starting HTTP server on port %v", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
