package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	YouTube    YouTubeConfig    `yaml:"youtube"`
	AI         AIConfig         `yaml:"ai"`
	Reddit     RedditConfig     `yaml:"reddit"`
	Database   DatabaseConfig   `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type YouTubeConfig struct {
	APIKey      string        `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	Regions     []string      `yaml:"regions"`
	MaxResults  int64         `yaml:"max_results"`
	RegionDelay time.Duration `yaml:"region_delay"`
}

type AIConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
}

type RedditConfig struct {
	ClientID     string `yaml:"client_id" env:"REDDIT_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"REDDIT_CLIENT_SECRET"`
	Username     string `yaml:"username" env:"REDDIT_USERNAME"`
	Password     string `yaml:"password" env:"REDDIT_PASSWORD"`
	Subreddit    string `yaml:"subreddit"`
	UserAgent    string `yaml:"user_agent"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type PipelineConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	VideoDelay time.Duration `yaml:"video_delay"`
}

// ScheduleConfig holds cron expressions with a leading seconds field.
type ScheduleConfig struct {
	Discover string `yaml:"discover"`
	Process  string `yaml:"process"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultRegions are queried in this order; earlier regions win dedup ties.
var DefaultRegions = []string{"US", "GB", "CA", "AU", "IN"}

func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	return Parse(data)
}

// Parse decodes YAML, fills env fallbacks and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	fromEnv(&c.YouTube.APIKey, "YOUTUBE_API_KEY")
	fromEnv(&c.AI.GeminiAPIKey, "GEMINI_API_KEY")
	fromEnv(&c.Reddit.ClientID, "REDDIT_CLIENT_ID")
	fromEnv(&c.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	fromEnv(&c.Reddit.Username, "REDDIT_USERNAME")
	fromEnv(&c.Reddit.Password, "REDDIT_PASSWORD")
	fromEnv(&c.Database.URL, "DATABASE_URL")
}

func fromEnv(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

func (c *Config) applyDefaults() {
	if len(c.YouTube.Regions) == 0 {
		c.YouTube.Regions = append([]string(nil), DefaultRegions...)
	}
	if c.YouTube.MaxResults <= 0 {
		c.YouTube.MaxResults = 50
	}
	if c.YouTube.RegionDelay <= 0 {
		c.YouTube.RegionDelay = time.Second
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = fmt.Sprintf("trend-digest/1.0 (by /u/%s)", c.Reddit.Username)
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 5
	}
	if c.Pipeline.VideoDelay <= 0 {
		c.Pipeline.VideoDelay = 2 * time.Second
	}
	if c.Schedule.Discover == "" {
		c.Schedule.Discover = "0 0 */6 * * *" // every 6 hours
	}
	if c.Schedule.Process == "" {
		c.Schedule.Process = "0 30 * * * *" // hourly at :30
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("YouTube API key is required (set YOUTUBE_API_KEY or youtube.api_key)")
	}
	if c.AI.GeminiAPIKey == "" {
		return fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or ai.gemini_api_key)")
	}
	if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
		return fmt.Errorf("Reddit app credentials are required (set REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET)")
	}
	if c.Reddit.Username == "" || c.Reddit.Password == "" {
		return fmt.Errorf("Reddit account credentials are required (set REDDIT_USERNAME and REDDIT_PASSWORD)")
	}
	if c.Reddit.Subreddit == "" {
		return fmt.Errorf("reddit.subreddit is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required (set DATABASE_URL or database.url)")
	}
	return nil
}
