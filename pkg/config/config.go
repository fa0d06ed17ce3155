package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wayfare-ai/wayfare/pkg/models"
	"gopkg.in/yaml.v3"
)

// Hotel provider names accepted by HotelsConfig.Provider.
const (
	HotelProviderStub     = "stub"
	HotelProviderRapidAPI = "rapidapi"
)

// Config holds all Wayfare configuration.
type Config struct {
	Listen      string            `yaml:"listen"`
	DBPath      string            `yaml:"db_path"`
	IPHashSalt  string            `yaml:"ip_hash_salt"`
	Debug       bool              `yaml:"debug"`
	LLM         LLMConfig         `yaml:"llm"`
	Spend       SpendConfig       `yaml:"spend"`
	OpenTripMap OpenTripMapConfig `yaml:"opentripmap"`
	Hotels      HotelsConfig      `yaml:"hotels"`
	Cache       CacheConfig       `yaml:"cache"`
	Admin       AdminConfig       `yaml:"admin"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	CORS        CORSConfig        `yaml:"cors"`
	Log         LogConfig         `yaml:"log"`
}

// LLMConfig defines the chat-completions upstream.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// SpendConfig controls the monthly spend cap.
type SpendConfig struct {
	MonthlyCapUSD float64               `yaml:"monthly_cap_usd"`
	Pricing       []models.ModelPricing `yaml:"pricing"`
}

// OpenTripMapConfig configures the POI provider.
type OpenTripMapConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	RadiusM int           `yaml:"radius_m"`
	Timeout time.Duration `yaml:"timeout"`
}

// HotelsConfig selects and configures the hotel provider.
// Provider is "stub" (default) or "rapidapi".
type HotelsConfig struct {
	Provider     string        `yaml:"provider"`
	RapidAPIKey  string        `yaml:"rapidapi_key"`
	RapidAPIHost string        `yaml:"rapidapi_host"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CacheConfig controls the upstream API response cache.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	MemoryTTL     time.Duration `yaml:"memory_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AdminConfig holds the basic-auth credentials for the admin endpoint.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RateLimitConfig bounds chat turns per client.
type RateLimitConfig struct {
	PerDay int `yaml:"per_day"`
}

// CORSConfig lists the origins allowed to call the HTTP API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig controls structured logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8000",
		DBPath: "wayfare.db",
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4",
			Timeout:     60 * time.Second,
			Temperature: 0.7,
			MaxTokens:   1500,
		},
		Spend: SpendConfig{
			MonthlyCapUSD: 10,
			Pricing:       models.DefaultPricing(),
		},
		OpenTripMap: OpenTripMapConfig{
			BaseURL: "https://api.opentripmap.com/0.1/en/places",
			RadiusM: 5000,
			Timeout: 30 * time.Second,
		},
		Hotels: HotelsConfig{
			Provider:     HotelProviderStub,
			RapidAPIHost: "booking-com.p.rapidapi.com",
			BaseURL:      "https://booking-com.p.rapidapi.com/v1",
			Timeout:      30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:           time.Hour,
			MemoryTTL:     5 * time.Minute,
			SweepInterval: time.Hour,
		},
		Admin: AdminConfig{
			Username: "admin",
		},
		RateLimit: RateLimitConfig{
			PerDay: 30,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Validate reports the first inconsistency in cfg.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if c.Spend.MonthlyCapUSD < 0 {
		return fmt.Errorf("spend.monthly_cap_usd must not be negative, got %v", c.Spend.MonthlyCapUSD)
	}
	switch c.Hotels.Provider {
	case HotelProviderStub:
	case HotelProviderRapidAPI:
		if c.Hotels.RapidAPIKey == "" {
			return errors.New("hotels.rapidapi_key is required for the rapidapi provider")
		}
	default:
		return fmt.Errorf("unknown hotel provider %q", c.Hotels.Provider)
	}
	if c.RateLimit.PerDay < 0 {
		return fmt.Errorf("rate_limit.per_day must not be negative, got %d", c.RateLimit.PerDay)
	}
	return nil
}
