package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type predictSummary struct {
	Label                string  `json:"label"`
	Confidence           float64 `json:"confidence"`
	SourceModel          string  `json:"source_model"`
	Recyclable           bool    `json:"recyclable"`
	RecyclableConfidence float64 `json:"recyclable_confidence"`
	EcoScore             int     `json:"eco_score"`
	ImagePath            string  `json:"image_path"`
	QualityCheck         struct {
		Score    int      `json:"score"`
		Feedback []string `json:"feedback"`
	} `json:"quality_check"`
	NewAchievements []struct {
		Name string `json:"name"`
	} `json:"new_achievements"`
}

func main() {
	dir := flag.String("dir", filepath.Join("sample_images"), "Directory containing images to upload (ignored if -file is set)")
	file := flag.String("file", "", "Single image to upload (overrides -dir)")
	endpoint := flag.String("url", "http://localhost:5000/api/predict", "Prediction endpoint")
	delay := flag.Duration("delay", time.Second, "Delay between uploads when using -dir")
	flag.Parse()

	files, err := resolveFiles(*file, *dir)
	if err != nil {
		log.Fatalf("failed to resolve files: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no images found (file=%s dir=%s)", *file, *dir)
	}

	client := &http.Client{Timeout: 60 * time.Second}

	fmt.Printf("Uploading %d image(s) to %s\n\n", len(files), *endpoint)
	for idx, path := range files {
		if err := uploadSample(client, path, *endpoint); err != nil {
			log.Printf("upload failed for %s: %v\n", path, err)
		}

		if idx < len(files)-1 && *delay > 0 {
			time.Sleep(*delay)
		}
	}
}

func resolveFiles(single, dir string) ([]string, error) {
	if single != "" {
		return []string{single}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func uploadSample(client *http.Client, path, endpoint string) error {
	fmt.Printf("→ %s\n", filepath.Base(path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(raw); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post prediction request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var summary predictSummary
	if err := json.Unmarshal(respBody, &summary); err != nil {
		return fmt.Errorf("decode prediction response: %w", err)
	}

	recyclable := "no"
	if summary.Recyclable {
		recyclable = "yes"
	}
	fmt.Printf("   label=%s (%.2f%%) source=%s recyclable=%s (%.0f%%) eco=%d quality=%d\n",
		summary.Label, summary.Confidence, summary.SourceModel, recyclable,
		summary.RecyclableConfidence, summary.EcoScore, summary.QualityCheck.Score)
	for _, fb := range summary.QualityCheck.Feedback {
		fmt.Printf("   quality: %s\n", fb)
	}
	for _, ach := range summary.NewAchievements {
		fmt.Printf("   🏆 unlocked: %s\n", ach.Name)
	}
	fmt.Printf("   saved image: %s\n", summary.ImagePath)

	return nil
}
