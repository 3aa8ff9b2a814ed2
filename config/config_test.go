package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "5000" || cfg.Protocol != "http" {
		t.Fatalf("unexpected listener defaults: %s %s", cfg.Protocol, cfg.Port)
	}
	if cfg.StoreDriver != "sqlite" || cfg.SQLitePath != "waste_sorting.db" {
		t.Fatalf("unexpected store defaults: %s %s", cfg.StoreDriver, cfg.SQLitePath)
	}
	if got := strings.Join(cfg.ClassifierA.Labels, ","); got != "glass,metal,paper,plastic,trash" {
		t.Fatalf("unexpected classifier A labels: %s", got)
	}
	if got := strings.Join(cfg.ClassifierB.Labels, ","); got != "food_waste,e_waste,textiles,hazardous,medical" {
		t.Fatalf("unexpected classifier B labels: %s", got)
	}
	if cfg.HistoryLimit != 20 || cfg.ImageSize != 224 {
		t.Fatalf("unexpected history/image defaults: %d %d", cfg.HistoryLimit, cfg.ImageSize)
	}
	if len(cfg.Classifiers()) != 0 {
		t.Fatalf("expected no classifiers without URLs, got %d", len(cfg.Classifiers()))
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
store_driver: sqlite
sqlite_path: /tmp/from-yaml.db
classifier_a:
  url: http://yaml-a:8501
  labels: [glass, metal]
chat_timeout: 5s
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SQLITE_PATH", "/tmp/from-env.db")
	t.Setenv("CLASSIFIER_B_URL", "http://env-b:8501")
	t.Setenv("CLASSIFIER_B_LABELS", "food_waste, e_waste ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected yaml port, got %s", cfg.Port)
	}
	if cfg.SQLitePath != "/tmp/from-env.db" {
		t.Fatalf("expected env sqlite path, got %s", cfg.SQLitePath)
	}
	if cfg.ChatTimeout != 5*time.Second {
		t.Fatalf("expected 5s chat timeout, got %s", cfg.ChatTimeout)
	}

	classifiers := cfg.Classifiers()
	if len(classifiers) != 2 {
		t.Fatalf("expected 2 classifiers, got %d", len(classifiers))
	}
	if classifiers[0].Name != "Model 1" || classifiers[0].URL != "http://yaml-a:8501" {
		t.Fatalf("unexpected first classifier: %+v", classifiers[0])
	}
	if got := strings.Join(classifiers[1].Labels, ","); got != "food_waste,e_waste" {
		t.Fatalf("unexpected env labels: %s", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad driver", key: "STORE_DRIVER", val: "postgres"},
		{name: "mongo without uri", key: "STORE_DRIVER", val: "mongo"},
		{name: "bad provider", key: "CHAT_PROVIDER", val: "openai"},
		{name: "bad int", key: "MAX_UPLOAD_MB", val: "lots"},
		{name: "bad duration", key: "CHAT_TIMEOUT", val: "soon"},
		{name: "bad protocol", key: "PROTOCOL", val: "gopher"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestChatAPIKeyIgnoresPlaceholder(t *testing.T) {
	t.Parallel()

	cfg := Config{ChatProvider: "gemini", GeminiAPIKey: geminiPlaceholderKey}
	if key := cfg.ChatAPIKey(); key != "" {
		t.Fatalf("expected placeholder to be treated as unset, got %q", key)
	}

	cfg = Config{ChatProvider: "anthropic", AnthropicAPIKey: "sk-test", GeminiAPIKey: "g"}
	if key := cfg.ChatAPIKey(); key != "sk-test" {
		t.Fatalf("expected anthropic key, got %q", key)
	}
}
