package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode     string `yaml:"mode"`
	Telegram struct {
		ChatID   int64  `yaml:"chat_id"`
		TopicID  int    `yaml:"topic_id"`
		TokenEnv string `yaml:"token_env"`
		Commands bool   `yaml:"commands"`
	} `yaml:"telegram"`
	Analysis struct {
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		FallbackModel  string  `yaml:"fallback_model"`
		APIKeyEnv      string  `yaml:"api_key_env"`
		Temperature    float32 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"analysis"`
	Tweets struct {
		BaseURL     string   `yaml:"base_url"`
		APIKeyEnv   string   `yaml:"api_key_env"`
		Handles     []string `yaml:"handles"`
		MaxItems    int      `yaml:"max_items"`
		PollSeconds int      `yaml:"poll_seconds"`
	} `yaml:"tweets"`
	News struct {
		PollSeconds    int          `yaml:"poll_seconds"`
		MaxItems       int          `yaml:"max_items"`
		FetchFullText  bool         `yaml:"fetch_full_text"`
		TimeoutSeconds int          `yaml:"timeout_seconds"`
		Sources        []NewsSource `yaml:"sources"`
	} `yaml:"news"`
	AlertLog struct {
		Dir               string `yaml:"dir"`
		CompressAfterDays int    `yaml:"compress_after_days"`
	} `yaml:"alert_log"`
	StatsResetCron string `yaml:"stats_reset_cron"`
}

// NewsSource describes one scraped news site.
type NewsSource struct {
	Name             string           `yaml:"name"`
	URL              string           `yaml:"url"`
	RateLimitSeconds int              `yaml:"rate_limit_seconds"`
	Selectors        ArticleSelectors `yaml:"selectors"`
}

// ArticleSelectors holds the CSS selectors used to pull article fields
// out of a source's listing page.
type ArticleSelectors struct {
	Article string `yaml:"article"`
	Title   string `yaml:"title"`
	URL     string `yaml:"url"`
	Summary string `yaml:"summary"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Mode == "LIVE" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required in LIVE mode")
	}
	if c.Analysis.Model == "" {
		return errors.New("analysis.model cannot be empty")
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 2 {
		return fmt.Errorf("analysis.temperature must be between 0-2, got %.2f", c.Analysis.Temperature)
	}
	if len(c.Tweets.Handles) == 0 && len(c.News.Sources) == 0 {
		return errors.New("at least one tweet handle or news source must be configured")
	}
	for i, src := range c.News.Sources {
		if src.Name == "" || src.URL == "" {
			return fmt.Errorf("news.sources[%d]: name and url are required", i)
		}
		if src.Selectors.Article == "" || src.Selectors.Title == "" {
			return fmt.Errorf("news source '%s': selectors.article and selectors.title are required", src.Name)
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Telegram.TokenEnv == "" {
		c.Telegram.TokenEnv = "TELEGRAM_BOT_TOKEN"
	}
	if c.Analysis.BaseURL == "" {
		c.Analysis.BaseURL = "https://api.x.ai/v1"
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "gpt-4"
	}
	if c.Analysis.FallbackModel == "" {
		c.Analysis.FallbackModel = "gpt-3.5-turbo"
	}
	if c.Analysis.APIKeyEnv == "" {
		c.Analysis.APIKeyEnv = "ANALYSIS_API_KEY"
	}
	if c.Analysis.Temperature == 0 {
		c.Analysis.Temperature = 0.2
	}
	if c.Analysis.TimeoutSeconds == 0 {
		c.Analysis.TimeoutSeconds = 30
	}
	if c.Tweets.APIKeyEnv == "" {
		c.Tweets.APIKeyEnv = "TWEET_API_KEY"
	}
	if c.Tweets.MaxItems == 0 {
		c.Tweets.MaxItems = 10
	}
	if c.Tweets.PollSeconds == 0 {
		c.Tweets.PollSeconds = 60
	}
	if c.News.PollSeconds == 0 {
		c.News.PollSeconds = 300
	}
	if c.News.MaxItems == 0 {
		c.News.MaxItems = 10
	}
	if c.News.TimeoutSeconds == 0 {
		c.News.TimeoutSeconds = 20
	}
	for i := range c.News.Sources {
		if c.News.Sources[i].RateLimitSeconds == 0 {
			c.News.Sources[i].RateLimitSeconds = 2
		}
		// The title anchor usually carries the link.
		if c.News.Sources[i].Selectors.URL == "" {
			c.News.Sources[i].Selectors.URL = c.News.Sources[i].Selectors.Title
		}
	}
	if c.AlertLog.Dir == "" {
		c.AlertLog.Dir = "alerts"
	}
	if c.AlertLog.CompressAfterDays == 0 {
		c.AlertLog.CompressAfterDays = 7
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
