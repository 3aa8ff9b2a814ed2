package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// geminiPlaceholderKey is the value shipped in the sample .env file.
const geminiPlaceholderKey = "your_gemini_api_key_here"

type ClassifierConfig struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Model  string   `yaml:"model"`
	Labels []string `yaml:"labels"`
}

type Config struct {
	Protocol string `yaml:"protocol"`
	Port     string `yaml:"port"`
	CertFile string `yaml:"cert_file"`
	CertKey  string `yaml:"cert_key"`

	StaticDir   string `yaml:"static_dir"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`

	StoreDriver   string `yaml:"store_driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	ClassifierA       ClassifierConfig `yaml:"classifier_a"`
	ClassifierB       ClassifierConfig `yaml:"classifier_b"`
	ClassifierTimeout time.Duration    `yaml:"classifier_timeout"`
	ImageSize         int              `yaml:"image_size"`

	ChatProvider    string        `yaml:"chat_provider"`
	GeminiAPIKey    string        `yaml:"gemini_api_key"`
	GeminiModel     string        `yaml:"gemini_model"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	ChatTimeout     time.Duration `yaml:"chat_timeout"`

	HistoryLimit       int `yaml:"history_limit"`
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// Load reads .env, then the optional YAML file at CONFIG_PATH (default
// config.yaml), then applies environment overrides and defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", configPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.Protocol, "PROTOCOL")
	envOverride(&cfg.Port, "PORT")
	envOverride(&cfg.CertFile, "CERT_FILE")
	envOverride(&cfg.CertKey, "CERT_KEY")
	envOverride(&cfg.StaticDir, "STATIC_DIR")
	envOverride(&cfg.UploadDir, "UPLOAD_DIR")
	envOverride(&cfg.StoreDriver, "STORE_DRIVER")
	envOverride(&cfg.SQLitePath, "SQLITE_PATH")
	envOverride(&cfg.MongoURI, "MONGO_URI")
	envOverride(&cfg.MongoDatabase, "MONGO_DATABASE")

	envOverride(&cfg.ClassifierA.URL, "CLASSIFIER_A_URL")
	envOverride(&cfg.ClassifierA.Model, "CLASSIFIER_A_MODEL")
	envOverrideList(&cfg.ClassifierA.Labels, "CLASSIFIER_A_LABELS")
	envOverride(&cfg.ClassifierB.URL, "CLASSIFIER_B_URL")
	envOverride(&cfg.ClassifierB.Model, "CLASSIFIER_B_MODEL")
	envOverrideList(&cfg.ClassifierB.Labels, "CLASSIFIER_B_LABELS")

	envOverride(&cfg.ChatProvider, "CHAT_PROVIDER")
	envOverride(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	envOverride(&cfg.GeminiModel, "GEMINI_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.AnthropicModel, "ANTHROPIC_MODEL")

	overrides := []func() error{
		func() error { return envOverrideInt(&cfg.MaxUploadMB, "MAX_UPLOAD_MB") },
		func() error { return envOverrideInt(&cfg.ImageSize, "IMAGE_SIZE") },
		func() error { return envOverrideInt(&cfg.HistoryLimit, "HISTORY_LIMIT") },
		func() error { return envOverrideInt(&cfg.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE") },
		func() error { return envOverrideDuration(&cfg.ClassifierTimeout, "CLASSIFIER_TIMEOUT") },
		func() error { return envOverrideDuration(&cfg.ChatTimeout, "CHAT_TIMEOUT") },
	}
	for _, apply := range overrides {
		if err := apply(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Protocol == "" {
		c.Protocol = "http"
	}
	if c.Port == "" {
		c.Port = "5000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "static"
	}
	if c.UploadDir == "" {
		c.UploadDir = "static/uploads"
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 16
	}
	if c.StoreDriver == "" {
		c.StoreDriver = "sqlite"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "waste_sorting.db"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "ecosort"
	}

	if c.ClassifierA.Name == "" {
		c.ClassifierA.Name = "Model 1"
	}
	if c.ClassifierA.Model == "" {
		c.ClassifierA.Model = "waste_model1"
	}
	if len(c.ClassifierA.Labels) == 0 {
		c.ClassifierA.Labels = []string{"glass", "metal", "paper", "plastic", "trash"}
	}
	if c.ClassifierB.Name == "" {
		c.ClassifierB.Name = "Model 2"
	}
	if c.ClassifierB.Model == "" {
		c.ClassifierB.Model = "waste_model2"
	}
	if len(c.ClassifierB.Labels) == 0 {
		c.ClassifierB.Labels = []string{"food_waste", "e_waste", "textiles", "hazardous", "medical"}
	}
	if c.ClassifierTimeout == 0 {
		c.ClassifierTimeout = 30 * time.Second
	}
	if c.ImageSize == 0 {
		c.ImageSize = 224
	}

	if c.ChatProvider == "" {
		c.ChatProvider = "gemini"
	}
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-2.5-flash"
	}
	if c.AnthropicModel == "" {
		c.AnthropicModel = "claude-sonnet-4-5-20250929"
	}
	if c.ChatTimeout == 0 {
		c.ChatTimeout = 20 * time.Second
	}

	if c.HistoryLimit == 0 {
		c.HistoryLimit = 20
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch strings.ToLower(c.Protocol) {
	case "http", "https":
	default:
		return fmt.Errorf("protocol must be 'http' or 'https', got '%s'", c.Protocol)
	}
	switch c.StoreDriver {
	case "sqlite":
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("mongo_uri is required when store_driver=mongo")
		}
	default:
		return fmt.Errorf("store_driver must be 'sqlite' or 'mongo', got '%s'", c.StoreDriver)
	}
	switch c.ChatProvider {
	case "gemini", "anthropic":
	default:
		return fmt.Errorf("chat_provider must be 'gemini' or 'anthropic', got '%s'", c.ChatProvider)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("invalid max_upload_mb '%d': must be >= 1", c.MaxUploadMB)
	}
	if c.ImageSize < 8 {
		return fmt.Errorf("invalid image_size '%d': must be >= 8", c.ImageSize)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("invalid history_limit '%d': must be >= 1", c.HistoryLimit)
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("invalid rate_limit_per_minute '%d': must be >= 1", c.RateLimitPerMinute)
	}
	for _, cc := range []ClassifierConfig{c.ClassifierA, c.ClassifierB} {
		if cc.URL != "" && len(cc.Labels) == 0 {
			return fmt.Errorf("classifier %s has no labels", cc.Name)
		}
	}
	return nil
}

// ChatAPIKey returns the key for the selected chat provider, treating the
// sample placeholder as unset.
func (c Config) ChatAPIKey() string {
	switch c.ChatProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		if c.GeminiAPIKey == geminiPlaceholderKey {
			return ""
		}
		return c.GeminiAPIKey
	}
}

// Classifiers returns the configured sidecars in arbitration order.
func (c Config) Classifiers() []ClassifierConfig {
	var out []ClassifierConfig
	for _, cc := range []ClassifierConfig{c.ClassifierA, c.ClassifierB} {
		if cc.URL != "" {
			out = append(out, cc)
		}
	}
	return out
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			*field = append(*field, item)
		}
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideDuration(field *time.Duration, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
