package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone      = "Asia/Seoul"
	configPathEnv        = "NEWSRAG_CONFIG"
	persistPathEnv       = "VECTOR_PERSIST_PATH"
	deepSearchAPIKeyEnv  = "DEEPSEARCH_API_KEY"
	openAIAPIKeyEnv      = "OPENAI_API_KEY"
	embeddingEndpointEnv = "EMBEDDING_ENDPOINT"
	logLevelEnv          = "LOG_LEVEL"
	chatGPTModelEnv      = "CHATGPT_MODEL"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
)

// Embedding providers understood by the application wiring.
const (
	ProviderSidecar = "sidecar"
	ProviderOpenAI  = "openai"
	ProviderHash    = "hash"
)

// DefaultThemes is the built-in list of market themes collected every run.
var DefaultThemes = []string{
	"에너지", "소재", "산업재", "유통", "생필품", "헬스케어", "금융", "정보기술",
	"통신서비스", "인프라", "부동산", "ETF", "IT", "반도체", "AI",
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Store         StoreConfig        `yaml:"store"`
	Embedding     EmbeddingConfig    `yaml:"embedding"`
	NewsSource    NewsSourceConfig   `yaml:"newsSource"`
	Ingestion     IngestionConfig    `yaml:"ingestion"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Retrieval     RetrievalConfig    `yaml:"retrieval"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig points at the persistent document collection.
type StoreConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig describes how texts are turned into vectors.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"apiKey"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	Workers        int    `yaml:"workers"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// Timeout converts TimeoutSeconds to a duration.
func (e EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// NewsSourceConfig configures the DeepSearch client.
type NewsSourceConfig struct {
	BaseURL            string  `yaml:"baseUrl"`
	APIKey             string  `yaml:"apiKey"`
	PageSize           int     `yaml:"pageSize"`
	PageLimit          int     `yaml:"pageLimit"`
	PageTimeoutSeconds int     `yaml:"pageTimeoutSeconds"`
	RequestsPerSecond  float64 `yaml:"requestsPerSecond"`
}

// PageTimeout converts PageTimeoutSeconds to a duration.
func (n NewsSourceConfig) PageTimeout() time.Duration {
	return time.Duration(n.PageTimeoutSeconds) * time.Second
}

// IngestionConfig drives the collection runs.
type IngestionConfig struct {
	Themes          []string `yaml:"themes"`
	BatchSize       int      `yaml:"batchSize"`
	InitialDaysBack int      `yaml:"initialDaysBack"`
	DailyDaysBack   int      `yaml:"dailyDaysBack"`
	RetentionDays   int      `yaml:"retentionDays"`
}

// SchedulerConfig defines when the daily collection should run.
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
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RetrievalConfig holds ranking defaults.
type RetrievalConfig struct {
	NResults          int     `yaml:"nResults"`
	MinRelevanceScore float64 `yaml:"minRelevanceScore"`
	PenaltyFactor     float64 `yaml:"penaltyFactor"`
}

// ChatGPTConfig defines how to contact the chat completion API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate rejects settings the application cannot run with.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is empty"))
	}
	if c.Store.Collection == "" {
		errs = append(errs, errors.New("store.collection is empty"))
	}
	switch c.Embedding.Provider {
	case ProviderSidecar, ProviderOpenAI, ProviderHash:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions < 1 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions))
	}
	if c.Embedding.Workers < 1 {
		errs = append(errs, fmt.Errorf("embedding.workers must be at least 1, got %d", c.Embedding.Workers))
	}
	if c.Ingestion.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("ingestion.batchSize must be at least 1, got %d", c.Ingestion.BatchSize))
	}
	if c.NewsSource.PageLimit < 1 {
		errs = append(errs, fmt.Errorf("newsSource.pageLimit must be at least 1, got %d", c.NewsSource.PageLimit))
	}
	if c.Retrieval.NResults < 1 {
		errs = append(errs, fmt.Errorf("retrieval.nResults must be at least 1, got %d", c.Retrieval.NResults))
	}
	if c.Retrieval.MinRelevanceScore < 0 || c.Retrieval.MinRelevanceScore > 1 {
		errs = append(errs, fmt.Errorf("retrieval.minRelevanceScore must be in [0,1], got %v", c.Retrieval.MinRelevanceScore))
	}
	if c.Retrieval.PenaltyFactor <= 0 || c.Retrieval.PenaltyFactor > 1 {
		errs = append(errs, fmt.Errorf("retrieval.penaltyFactor must be in (0,1], got %v", c.Retrieval.PenaltyFactor))
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(persistPathEnv); v != "" {
		c.Store.Path = v
	}

	if v := os.Getenv(deepSearchAPIKeyEnv); v != "" {
		c.NewsSource.APIKey = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}

	if v := os.Getenv(embeddingEndpointEnv); v != "" {
		c.Embedding.Endpoint = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Store.Path != "" {
		base.Store.Path = override.Store.Path
	}
	if override.Store.Collection != "" {
		base.Store.Collection = override.Store.Collection
	}

	if override.Embedding.Provider != "" {
		base.Embedding.Provider = override.Embedding.Provider
	}
	if override.Embedding.Endpoint != "" {
		base.Embedding.Endpoint = override.Embedding.Endpoint
	}
	if override.Embedding.APIKey != "" {
		base.Embedding.APIKey = override.Embedding.APIKey
	}
	if override.Embedding.Model != "" {
		base.Embedding.Model = override.Embedding.Model
	}
	if override.Embedding.Dimensions != 0 {
		base.Embedding.Dimensions = override.Embedding.Dimensions
	}
	if override.Embedding.Workers != 0 {
		base.Embedding.Workers = override.Embedding.Workers
	}
	if override.Embedding.TimeoutSeconds != 0 {
		base.Embedding.TimeoutSeconds = override.Embedding.TimeoutSeconds
	}

	if override.NewsSource.BaseURL != "" {
		base.NewsSource.BaseURL = override.NewsSource.BaseURL
	}
	if override.NewsSource.APIKey != "" {
		base.NewsSource.APIKey = override.NewsSource.APIKey
	}
	if override.NewsSource.PageSize != 0 {
		base.NewsSource.PageSize = override.NewsSource.PageSize
	}
	if override.NewsSource.PageLimit != 0 {
		base.NewsSource.PageLimit = override.NewsSource.PageLimit
	}
	if override.NewsSource.PageTimeoutSeconds != 0 {
		base.NewsSource.PageTimeoutSeconds = override.NewsSource.PageTimeoutSeconds
	}
	if override.NewsSource.RequestsPerSecond != 0 {
		base.NewsSource.RequestsPerSecond = override.NewsSource.RequestsPerSecond
	}

	if len(override.Ingestion.Themes) > 0 {
		base.Ingestion.Themes = override.Ingestion.Themes
	}
	if override.Ingestion.BatchSize != 0 {
		base.Ingestion.BatchSize = override.Ingestion.BatchSize
	}
	if override.Ingestion.InitialDaysBack != 0 {
		base.Ingestion.InitialDaysBack = override.Ingestion.InitialDaysBack
	}
	if override.Ingestion.DailyDaysBack != 0 {
		base.Ingestion.DailyDaysBack = override.Ingestion.DailyDaysBack
	}
	if override.Ingestion.RetentionDays != 0 {
		base.Ingestion.RetentionDays = override.Ingestion.RetentionDays
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Retrieval.NResults != 0 {
		base.Retrieval.NResults = override.Retrieval.NResults
	}
	if override.Retrieval.MinRelevanceScore != 0 {
		base.Retrieval.MinRelevanceScore = override.Retrieval.MinRelevanceScore
	}
	if override.Retrieval.PenaltyFactor != 0 {
		base.Retrieval.PenaltyFactor = override.Retrieval.PenaltyFactor
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	themes := make([]string, len(DefaultThemes))
	copy(themes, DefaultThemes)

	return Config{
		Logging: LoggingConfig{Level: "info"},
		Store:   StoreConfig{Path: "./chroma_storage", Collection: "articles"},
		Embedding: EmbeddingConfig{
			Provider:       ProviderSidecar,
			Endpoint:       "http://localhost:8081",
			Model:          "jhgan/ko-sroberta-multitask",
			Dimensions:     768,
			Workers:        4,
			TimeoutSeconds: 15,
		},
		NewsSource: NewsSourceConfig{
			BaseURL:            "https://api-v2.deepsearch.com/v1/global-articles",
			PageSize:           50,
			PageLimit:          2,
			PageTimeoutSeconds: 10,
			RequestsPerSecond:  5,
		},
		Ingestion: IngestionConfig{
			Themes:          themes,
			BatchSize:       50,
			InitialDaysBack: 7,
			DailyDaysBack:   1,
			RetentionDays:   30,
		},
		Scheduler: SchedulerConfig{CronExpression: "0 3 * * *", Timezone: defaultTimezone},
		Retrieval: RetrievalConfig{NResults: 5, MinRelevanceScore: 0.3, PenaltyFactor: 0.95},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are an equity research assistant who builds portfolio ideas from recent news.",
		},
	}
}
