package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Anuj2862/EcoSort-AI/classifier"
	"github.com/Anuj2862/EcoSort-AI/config"
	"github.com/Anuj2862/EcoSort-AI/db"
	"github.com/Anuj2862/EcoSort-AI/waste"
)

// Explain how a photo (or a stored classification) got its label,
// recyclability verdict and eco-score.
func main() {
	id := flag.Int64("id", 0, "Explain a stored classification instead of a new image")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	if *id > 0 {
		explainStored(ctx, cfg, *id)
		return
	}

	if flag.NArg() < 1 {
		log.Fatal("Usage: go run ./cmd/explain_prediction [-id N] <image-file>")
	}
	explainImage(ctx, cfg, flag.Arg(0))
}

func explainImage(ctx context.Context, cfg config.Config, path string) {
	fmt.Printf("=== Explaining Prediction for: %s ===\n\n", filepath.Base(path))

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read image: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Fatalf("Failed to decode image: %v", err)
	}
	bounds := img.Bounds()
	fmt.Printf("🖼  Image: %s, %dx%d\n\n", format, bounds.Dx(), bounds.Dy())

	quality := waste.AnalyzeQuality(img)
	fmt.Printf("🔍 Quality Check: score %d/100\n", quality.Score)
	fmt.Printf("   Brightness: %.1f (dark < 50, bright > 200)\n", quality.Brightness)
	fmt.Printf("   Variance:   %.1f (blurry < 100)\n", quality.BlurScore)
	for _, fb := range quality.Feedback {
		fmt.Printf("   - %s\n", fb)
	}
	fmt.Println()

	classifiers := classifier.LoadAll(ctx, cfg)
	if len(classifiers) == 0 {
		log.Fatal("No classifier reachable, check CLASSIFIER_A_URL / CLASSIFIER_B_URL")
	}

	outputs := make([]waste.ModelOutput, 0, len(classifiers))
	for _, c := range classifiers {
		probs, err := c.Predict(ctx, img)
		if err != nil {
			log.Fatalf("Inference error: %v", err)
		}
		outputs = append(outputs, waste.ModelOutput{Model: c.Name(), Labels: c.Labels(), Probs: probs})
	}

	eval, err := waste.Evaluate(quality, outputs)
	if err != nil {
		log.Fatalf("Ensemble error: %v", err)
	}

	fmt.Printf("🎯 Model Outputs (%s mode):\n", classifier.Mode(len(classifiers)))
	for _, top := range eval.Decision.Tops {
		fmt.Printf("   %-8s best: %s (%.2f%%)\n", top.Model, top.Label, top.Probability*100)
	}
	fmt.Println()

	fmt.Printf("💡 Chosen: '%s' from %s at %.2f%%\n", eval.Decision.Label, eval.Decision.SourceModel, eval.Decision.Confidence)
	if len(eval.Decision.Tops) > 1 {
		fmt.Printf("   A later model only wins with a strictly higher top probability.\n")
	}
	fmt.Println()

	printVerdict(eval.Decision.Label, eval.Decision.Confidence, quality.Score, eval.Verdict)

	fmt.Printf("\n📊 All Predictions:\n")
	for i, p := range eval.Decision.Predictions {
		if i >= 10 {
			break
		}
		fmt.Printf("   %2d. %-12s %6.2f%%\n", i+1, p.Label, p.Percent)
	}
}

func explainStored(ctx context.Context, cfg config.Config, id int64) {
	store, err := db.NewStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	c, err := store.GetClassification(ctx, id)
	if err != nil {
		log.Fatalf("Failed to load classification %d: %v", id, err)
	}

	fmt.Printf("=== Explaining Classification #%d ===\n\n", c.ID)
	fmt.Printf("   Image:      %s\n", c.ImagePath)
	fmt.Printf("   Label:      %s (%.2f%%)\n", c.PredictedClass, c.Confidence)
	fmt.Printf("   Source:     %s\n", c.SourceModel)
	fmt.Printf("   Classified: %s\n", c.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("   Stored:     recyclable=%v confidence=%.2f eco=%d\n\n", c.Recyclable, c.RecyclableConfidence, c.EcoScore)

	// The quality score is not stored, so show the verdict for a clean photo.
	verdict := waste.AssessRecyclability(c.PredictedClass, c.Confidence, 100)
	printVerdict(c.PredictedClass, c.Confidence, 100, verdict)
}

func printVerdict(label string, confidence float64, qualityScore int, verdict waste.RecyclabilityVerdict) {
	rule, known := waste.RuleFor(label)

	fmt.Printf("♻️  Recyclability Rule for '%s':\n", label)
	if !known {
		fmt.Printf("   ⚠️  Unknown label, default rule applies\n")
		fmt.Printf("   Labels with rules: %s\n", strings.Join(waste.KnownLabels(), ", "))
	}
	fmt.Printf("   Base: recyclable=%v confidence=%d%%\n", rule.Recyclable, rule.BaseConfidence)
	if qualityScore < 60 {
		fmt.Printf("   - Quality %d < 60: confidence reduced by 20 (floor 50)\n", qualityScore)
	}
	if confidence < 70 {
		fmt.Printf("   - Prediction confidence %.1f%% < 70: reduced by 15 (floor 50)\n", confidence)
	}
	fmt.Printf("   Result: recyclable=%v confidence=%.0f%%\n", verdict.Recyclable, verdict.Confidence)
	fmt.Printf("   Reason: %s\n", verdict.Reason)
	fmt.Printf("   🌱 Eco-score: %d/100\n", verdict.EcoScore)
}
