package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"policy-fund-backend/api/internal/cors"
	"policy-fund-backend/api/internal/llm"
)

type Config struct {
	Port     string
	Provider string

	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIReasoningEffort string
	OpenAIBaseURL         string

	GeminiAPIKey string
	GeminiModel  string

	FrontendOrigins []string
	UpstreamTimeout time.Duration

	DatabaseURL      string
	TelegramBotToken string
	LogLevel         string

	ChatPersona string
	BlogPersona string
	Disclaimer  string
}

var efforts = map[string]bool{"none": true, "minimal": true, "low": true, "medium": true, "high": true}

// Load reads .env (if present), the environment and an optional
// policy-fund.yaml in the working directory. Environment wins over the file.
// Provider keys are not required here: a provider without its key is
// reported per request.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigName("policy-fund")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read policy-fund.yaml: %w", err)
		}
	}

	v.SetDefault("port", "3000")
	v.SetDefault("llm_provider", llm.ProviderOpenAIResponses)
	v.SetDefault("openai_reasoning_effort", "medium")
	v.SetDefault("frontend_origin", cors.Wildcard)
	v.SetDefault("upstream_timeout", "30s")
	v.SetDefault("log_level", "info")

	cfg := &Config{
		Port:                  strings.TrimSpace(v.GetString("port")),
		OpenAIAPIKey:          strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIModel:           strings.TrimSpace(v.GetString("openai_model")),
		OpenAIReasoningEffort: strings.ToLower(strings.TrimSpace(v.GetString("openai_reasoning_effort"))),
		OpenAIBaseURL:         strings.TrimSpace(v.GetString("openai_base_url")),
		GeminiAPIKey:          strings.TrimSpace(v.GetString("gemini_api_key")),
		GeminiModel:           strings.TrimSpace(v.GetString("gemini_model")),
		FrontendOrigins:       cors.ParseAllowList(v.GetString("frontend_origin")),
		DatabaseURL:           strings.TrimSpace(v.GetString("database_url")),
		TelegramBotToken:      strings.TrimSpace(v.GetString("telegram_bot_token")),
		LogLevel:              strings.TrimSpace(v.GetString("log_level")),
		ChatPersona:           v.GetString("chat_persona"),
		BlogPersona:           v.GetString("blog_persona"),
		Disclaimer:            v.GetString("disclaimer"),
	}

	provider, err := canonicalProvider(v.GetString("llm_provider"))
	if err != nil {
		return nil, err
	}
	cfg.Provider = provider

	if !efforts[cfg.OpenAIReasoningEffort] {
		return nil, fmt.Errorf("invalid OPENAI_REASONING_EFFORT %q: use none | minimal | low | medium | high", cfg.OpenAIReasoningEffort)
	}

	timeout, err := parseTimeout(v.GetString("upstream_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}
	cfg.UpstreamTimeout = timeout

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT %q", cfg.Port)
	}
	return cfg, nil
}

func (c *Config) Addr() string { return ":" + c.Port }

func canonicalProvider(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case llm.ProviderOpenAIChat, "openai", "gpt":
		return llm.ProviderOpenAIChat, nil
	case llm.ProviderOpenAIResponses, "responses":
		return llm.ProviderOpenAIResponses, nil
	case llm.ProviderGemini:
		return llm.ProviderGemini, nil
	}
	return "", fmt.Errorf("invalid LLM_PROVIDER %q: use %s | %s | %s",
		name, llm.ProviderOpenAIChat, llm.ProviderOpenAIResponses, llm.ProviderGemini)
}

// parseTimeout accepts a Go duration ("45s") or a number of seconds ("45").
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		s = strconv.Itoa(n) + "s"
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
