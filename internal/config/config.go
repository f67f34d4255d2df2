package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "DAILYDIGEST_CONFIG"
	appDir          = "dailydigest"
)

// Config holds every setting of the application. It is built once by Load and
// passed by value into constructors.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Aggregator    AggregatorConfig   `yaml:"aggregator"`
	Analyzer      AnalyzerConfig     `yaml:"analyzer"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Delivery      DeliveryConfig     `yaml:"delivery"`
	Email         EmailConfig        `yaml:"email"`
	Notifications NotificationConfig `yaml:"notifications"`
	Storage       StorageConfig      `yaml:"storage"`
	HTTP          HTTPConfig         `yaml:"http"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines when the daily run fires.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// AggregatorConfig controls merging, relevance filtering and truncation.
type AggregatorConfig struct {
	Limit          int           `yaml:"limit"`
	Workers        int           `yaml:"workers"`
	SourceTimeout  time.Duration `yaml:"sourceTimeout"`
	TopicTerms     []string      `yaml:"topicTerms"`
	QualifierTerms []string      `yaml:"qualifierTerms"`
	MatchSummary   bool          `yaml:"matchSummary"`
}

// AnalyzerConfig shapes the request sent to the summarization service.
type AnalyzerConfig struct {
	MaxInputChars int    `yaml:"maxInputChars"`
	Instructions  string `yaml:"instructions"`

	// AbstractInstructions and AbstractMaxChars drive the per-paper abstract
	// rewrite enabled by a site's "summarize" option.
	AbstractInstructions string `yaml:"abstractInstructions"`
	AbstractMaxChars     int    `yaml:"abstractMaxChars"`
}

// ChatGPTConfig defines how to contact an OpenAI-compatible chat API.
type ChatGPTConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PipelineConfig bounds the retry controller.
type PipelineConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
}

// DeliveryConfig drives the batched dispatcher.
type DeliveryConfig struct {
	Channel            string        `yaml:"channel"`
	RecipientsFile     string        `yaml:"recipientsFile"`
	BatchSize          int           `yaml:"batchSize"`
	InterBatchDelay    time.Duration `yaml:"interBatchDelay"`
	FallbackIndividual bool          `yaml:"fallbackIndividual"`
	Subject            string        `yaml:"subject"`
	Footer             string        `yaml:"footer"`
	AttachRaw          bool          `yaml:"attachRaw"`
}

// EmailConfig holds SMTP relay credentials.
type EmailConfig struct {
	SMTPHost string `yaml:"smtpHost"`
	SMTPPort int    `yaml:"smtpPort"`
	Sender   string `yaml:"sender"`
	Password string `yaml:"password"`
	SSL      bool   `yaml:"ssl"`
}

// NotificationConfig encapsulates non-mail channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	APIBase  string `yaml:"apiBase"`
}

// StorageConfig covers run artifacts and the run ledger.
type StorageConfig struct {
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

// ArtifactsConfig selects where date-keyed artifacts go.
type ArtifactsConfig struct {
	Backend  string `yaml:"backend"`
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// LedgerConfig describes the SQL run ledger; an empty driver disables it.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// HTTPConfig is the status server bound by the serve command.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SiteConfig describes a single site with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Enabled    *bool             `yaml:"enabled"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// IsEnabled treats an omitted flag as enabled.
func (s SiteConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// CategoryConfig holds a concrete endpoint to crawl (e.g., an arXiv category URL).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DefaultConfigPath is the per-user config location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appDir, "config.yaml")
}

// Load builds the configuration: defaults, then the YAML file (explicit path,
// DAILYDIGEST_CONFIG or the XDG default), then environment overrides.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if path == "" {
		path = os.Getenv(configPathEnv)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath()
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults only
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	overrides, err := loadEnvOverrides()
	if err != nil {
		return Config{}, err
	}
	overrides.apply(&cfg)
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var problems []string

	if c.Pipeline.MaxAttempts < 1 || c.Pipeline.MaxAttempts > 10 {
		problems = append(problems, fmt.Sprintf("pipeline.maxAttempts must be within 1..10, got %d", c.Pipeline.MaxAttempts))
	}
	if c.Pipeline.RetryDelay < 0 {
		problems = append(problems, "pipeline.retryDelay must not be negative")
	}
	if c.Delivery.BatchSize < 1 {
		problems = append(problems, fmt.Sprintf("delivery.batchSize must be positive, got %d", c.Delivery.BatchSize))
	}
	if c.Delivery.InterBatchDelay < 0 {
		problems = append(problems, "delivery.interBatchDelay must not be negative")
	}
	switch c.Delivery.Channel {
	case "email", "telegram":
	default:
		problems = append(problems, fmt.Sprintf("delivery.channel must be email or telegram, got %q", c.Delivery.Channel))
	}
	switch c.Storage.Artifacts.Backend {
	case "fs", "s3":
	default:
		problems = append(problems, fmt.Sprintf("storage.artifacts.backend must be fs or s3, got %q", c.Storage.Artifacts.Backend))
	}
	if c.Storage.Artifacts.Backend == "s3" && c.Storage.Artifacts.Bucket == "" {
		problems = append(problems, "storage.artifacts.bucket is required for the s3 backend")
	}
	switch c.Storage.Ledger.Driver {
	case "", "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("storage.ledger.driver must be sqlite or postgres, got %q", c.Storage.Ledger.Driver))
	}
	if c.Analyzer.MaxInputChars < 1 {
		problems = append(problems, "analyzer.maxInputChars must be positive")
	}

	enabled := 0
	for i, site := range c.Sites {
		if site.Name == "" {
			problems = append(problems, fmt.Sprintf("site %d: name is required", i))
		}
		if site.Scanner == "" {
			problems = append(problems, fmt.Sprintf("site %q: scanner is required", site.Name))
		}
		if site.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		problems = append(problems, "at least one enabled site is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	dataDir := filepath.Join(xdg.DataHome, appDir)

	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{CronExpression: "0 21 * * *", Timezone: defaultTimezone, location: tz},
		Aggregator: AggregatorConfig{
			Limit:         15,
			Workers:       4,
			SourceTimeout: 45 * time.Second,
		},
		Analyzer: AnalyzerConfig{
			MaxInputChars: 2000,
			Instructions: "You are a technology trend analyst. From the items below pick the single most " +
				"remarkable one and explain why, then list today's trends, three numbered insights and a short " +
				"prediction. Use the markdown sections: ## Highlight, ## Trends, ## Insights, ## Prediction.",
			AbstractMaxChars: 150,
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   4000,
			Timeout:     120 * time.Second,
		},
		Pipeline: PipelineConfig{MaxAttempts: 3, RetryDelay: 3 * time.Minute},
		Delivery: DeliveryConfig{
			Channel:            "email",
			RecipientsFile:     "emails.txt",
			BatchSize:          20,
			InterBatchDelay:    5 * time.Second,
			FallbackIndividual: true,
			Subject:            "Daily digest {{date}}",
		},
		Email: EmailConfig{SMTPHost: "smtp.163.com", SMTPPort: 465, SSL: true},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
		Storage: StorageConfig{
			Artifacts: ArtifactsConfig{Backend: "fs", Dir: filepath.Join(dataDir, "runs")},
			Ledger:    LedgerConfig{Driver: "sqlite", DSN: filepath.Join(dataDir, "ledger.db")},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Sites: []SiteConfig{
			{
				Name:    "github-trending",
				Scanner: "github-trending",
				Categories: []CategoryConfig{
					{Name: "python", URL: "https://github.com/trending/python"},
				},
			},
			{
				Name:    "arxiv-ai",
				Scanner: "arxiv",
				Categories: []CategoryConfig{
					{Name: "cs.AI", URL: "https://export.arxiv.org/list/cs.AI/pastweek"},
				},
				Options: map[string]string{"maxItems": "10"},
			},
		},
	}
}
