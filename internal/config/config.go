package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"RatioScope/internal/calculator"
	"RatioScope/internal/model"
)

// Provider holds the endpoint and credentials of one data provider.
type Provider struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Config holds all application configuration.
type Config struct {
	Providers struct {
		CryptoCompare Provider `yaml:"cryptocompare"`
		CoinGecko     Provider `yaml:"coingecko"`
	} `yaml:"providers"`

	QuoteCurrency string       `yaml:"quote_currency"`
	Pairs         []model.Pair `yaml:"pairs"`

	View struct {
		Lookback string `yaml:"lookback"`
		Interval string `yaml:"interval"`
	} `yaml:"view"`

	Indicators []calculator.IndicatorSpec `yaml:"indicators"`

	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		ReportCron  string `yaml:"report_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

// envOverrides are read with the RATIOSCOPE prefix, falling back to the
// bare names (TELEGRAM_BOT_TOKEN, HTTPS_PROXY, ...).
type envOverrides struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	Proxy            string `envconfig:"HTTPS_PROXY"`
	SQLitePath       string `envconfig:"SQLITE_PATH"`
	CryptoCompareKey string `envconfig:"CRYPTOCOMPARE_API_KEY"`
	CoinGeckoKey     string `envconfig:"COINGECKO_API_KEY"`
	RedisAddr        string `envconfig:"REDIS_ADDR"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
	HTTPAddr         string `envconfig:"HTTP_ADDR"`
	RefreshCron      string `envconfig:"CRON_REFRESH"`
	Lookback         string `envconfig:"LOOKBACK"`
	Interval         string `envconfig:"INTERVAL"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("ratioscope", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.BotToken, env.TelegramBotToken)
	set(&c.Telegram.ChatID, env.TelegramChatID)
	set(&c.Proxy, env.Proxy)
	set(&c.Database.SQLitePath, env.SQLitePath)
	set(&c.Providers.CryptoCompare.APIKey, env.CryptoCompareKey)
	set(&c.Providers.CoinGecko.APIKey, env.CoinGeckoKey)
	set(&c.Redis.Addr, env.RedisAddr)
	set(&c.Redis.Password, env.RedisPassword)
	set(&c.HTTP.Addr, env.HTTPAddr)
	set(&c.Schedule.RefreshCron, env.RefreshCron)
	set(&c.View.Lookback, env.Lookback)
	set(&c.View.Interval, env.Interval)
}

func (c *Config) applyDefaults() {
	if c.Providers.CryptoCompare.BaseURL == "" {
		c.Providers.CryptoCompare.BaseURL = "https://min-api.cryptocompare.com"
	}
	if c.Providers.CoinGecko.BaseURL == "" {
		c.Providers.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.QuoteCurrency == "" {
		c.QuoteCurrency = "USD"
	}
	if len(c.Pairs) == 0 {
		c.Pairs = DefaultPairs()
	}
	if c.View.Lookback == "" {
		c.View.Lookback = "365"
	}
	if c.View.Interval == "" {
		c.View.Interval = string(model.Interval1D)
	}
	if len(c.Indicators) == 0 {
		c.Indicators = calculator.DefaultIndicators()
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 */15 * * * *"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 0 9 * * *"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/ratioscope.db"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// DefaultPairs tracks BTC against CHZ, with PEPPER as a best-effort leg
// quoted in CHZ.
func DefaultPairs() []model.Pair {
	return []model.Pair{{
		Name:        "CHZ/BTC",
		Numerator:   model.AssetRef{Symbol: "BTC", Provider: model.ProviderCryptoCompare},
		Denominator: model.AssetRef{Symbol: "CHZ", Provider: model.ProviderCryptoCompare},
		Optional: &model.OptionalLeg{
			Name:    "PEPPER/CHZ",
			Asset:   model.AssetRef{Symbol: "pepper", Provider: model.ProviderCoinGecko},
			Against: model.RoleDenominator,
			Invert:  true,
		},
	}}
}

// DefaultView parses the configured lookback and interval.
func (c *Config) DefaultView() (model.Lookback, model.Interval, error) {
	lb, err := model.ParseLookback(c.View.Lookback)
	if err != nil {
		return model.Lookback{}, "", err
	}
	iv, err := model.ParseInterval(c.View.Interval)
	if err != nil {
		return model.Lookback{}, "", err
	}
	return lb, iv, nil
}

// TelegramEnabled reports whether both bot token and chat id are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks pairs, view and indicator settings.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Pairs))
	for i, p := range c.Pairs {
		if p.Name == "" {
			return fmt.Errorf("pairs[%d].name is required", i)
		}
		if names[p.Slug()] {
			return fmt.Errorf("duplicate pair %q", p.Name)
		}
		names[p.Slug()] = true
		if err := validateAsset(p.Numerator); err != nil {
			return fmt.Errorf("pair %s numerator: %w", p.Name, err)
		}
		if err := validateAsset(p.Denominator); err != nil {
			return fmt.Errorf("pair %s denominator: %w", p.Name, err)
		}
		if opt := p.Optional; opt != nil {
			if err := validateAsset(opt.Asset); err != nil {
				return fmt.Errorf("pair %s optional: %w", p.Name, err)
			}
			switch opt.Against {
			case "":
				opt.Against = model.RoleDenominator
			case model.RoleNumerator, model.RoleDenominator:
			default:
				return fmt.Errorf("pair %s optional.against must be numerator or denominator", p.Name)
			}
			if opt.Name == "" {
				opt.Name = opt.Asset.Symbol
			}
		}
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}

	lb, _, err := c.DefaultView()
	if err != nil {
		return fmt.Errorf("view: %w", err)
	}
	if !lb.IsOption() {
		return fmt.Errorf("view.lookback must be one of 7, 30, 90, 180, 365 or max")
	}
	for _, spec := range c.Indicators {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("indicators: %w", err)
		}
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis.ttl must not be negative")
	}
	return nil
}

func validateAsset(a model.AssetRef) error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	switch a.Provider {
	case model.ProviderCryptoCompare, model.ProviderCoinGecko:
		return nil
	}
	return fmt.Errorf("unknown provider %q", a.Provider)
}
