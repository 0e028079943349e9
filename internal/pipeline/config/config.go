package config

import (
	"time"

	"rivalwatch/pkg/config"
	"rivalwatch/pkg/resilience"
)

// Pipeline holds pipeline-worker specific configuration.
type Pipeline struct {
	MaxConcurrentSignals       int           `mapstructure:"max_concurrent_signals"`
	RedisStreamIngestTimeout   time.Duration `mapstructure:"redis_stream_ingest_timeout"`
	RedisStreamResearchTimeout time.Duration `mapstructure:"redis_stream_research_timeout"`
	RedisStreamRetryInterval   time.Duration `mapstructure:"redis_stream_retry_interval"`
	RedisStreamMaxIdleDuration time.Duration `mapstructure:"redis_stream_max_idle_duration"`
	RedisStreamMaxRetry        int           `mapstructure:"redis_stream_max_retry"`
	SoftDeadline               time.Duration `mapstructure:"soft_deadline"`
	RulesPath                  string        `mapstructure:"rules_path"`
}

// SignalSearch holds the signal-search upstream configuration.
type SignalSearch struct {
	Provider            string        `mapstructure:"provider"`
	Feeds               []string      `mapstructure:"feeds"`
	NewsAPIBaseURL      string        `mapstructure:"newsapi_base_url"`
	NewsAPIKey          string        `mapstructure:"newsapi_key"`
	TimeWindow          time.Duration `mapstructure:"time_window"`
	MaxConcurrent       int           `mapstructure:"max_concurrent"`
	FetchArticleContent bool          `mapstructure:"fetch_article_content"`
}

// ContextSearch holds the contextual-search upstream configuration.
type ContextSearch struct {
	BaseURL             string `mapstructure:"base_url"`
	TopK                int    `mapstructure:"top_k"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// DeepResearch holds the deep-synthesis upstream configuration.
type DeepResearch struct {
	SourceTarget int           `mapstructure:"source_target"`
	ReportTTL    time.Duration `mapstructure:"report_ttl"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	BaseURL             string `mapstructure:"base_url"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// OpenAI holds the configuration for the OpenAI API.
type OpenAI struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// AI selects the extraction/research provider.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the pipeline service.
type Config struct {
	App           config.App        `mapstructure:"app"`
	Logger        config.Logger     `mapstructure:"logger"`
	Database      config.Database   `mapstructure:"database"`
	Redis         config.Redis      `mapstructure:"redis"`
	Pipeline      Pipeline          `mapstructure:"pipeline"`
	Resilience    resilience.Config `mapstructure:"resilience"`
	SignalSearch  SignalSearch      `mapstructure:"signal_search"`
	ContextSearch ContextSearch     `mapstructure:"context_search"`
	DeepResearch  DeepResearch      `mapstructure:"deep_research"`
	AI            AI                `mapstructure:"ai"`
	Gemini        Gemini            `mapstructure:"gemini"`
	OpenAI        OpenAI            `mapstructure:"openai"`
	Telegram      Telegram          `mapstructure:"telegram"`
}

// Load loads the pipeline configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
