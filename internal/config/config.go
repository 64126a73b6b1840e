package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

type HTTPConfig struct {
	Addr string
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite". Sqlite is intended for local
	// development and tests.
	Driver string
	DSN    string
}

type BillingConfig struct {
	// BaseURL of the external billing system's REST API.
	BaseURL string
	// AccessToken for the billing API. Token issuance and refresh are
	// handled by the connection flow outside this service.
	AccessToken string
	// FetchTimeout bounds a single per-customer invoice fetch.
	FetchTimeout time.Duration
	// PayLinkBase is used to construct a payment link for unpaid invoices
	// when the billing system returns no direct link.
	PayLinkBase string
	// DefaultCurrency is applied to records whose currency cannot be
	// resolved from the raw payload.
	DefaultCurrency string
}

type RedisConfig struct {
	// Addr is optional. When empty the snapshot store runs memory-only.
	Addr     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	RefreshInterval time.Duration
}

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Billing   BillingConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
}

func Load() (Config, error) {
	// Missing .env is fine; env vars win either way.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LEDGERLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:ledgerlink.db")
	v.SetDefault("billing.base_url", "")
	v.SetDefault("billing.access_token", "")
	v.SetDefault("billing.fetch_timeout", "20s")
	v.SetDefault("billing.pay_link_base", "")
	v.SetDefault("billing.default_currency", "USD")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("scheduler.refresh_interval", "60s")

	cfg := Config{
		HTTP: HTTPConfig{
			Addr: v.GetString("http.addr"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			DSN:    v.GetString("database.dsn"),
		},
		Billing: BillingConfig{
			BaseURL:         strings.TrimRight(strings.TrimSpace(v.GetString("billing.base_url")), "/"),
			AccessToken:     strings.TrimSpace(v.GetString("billing.access_token")),
			FetchTimeout:    v.GetDuration("billing.fetch_timeout"),
			PayLinkBase:     strings.TrimRight(strings.TrimSpace(v.GetString("billing.pay_link_base")), "/"),
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(v.GetString("billing.default_currency"))),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis.addr")),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Scheduler: SchedulerConfig{
			RefreshInterval: v.GetDuration("scheduler.refresh_interval"),
		},
	}

	if cfg.Billing.FetchTimeout <= 0 {
		cfg.Billing.FetchTimeout = 20 * time.Second
	}
	if cfg.Scheduler.RefreshInterval <= 0 {
		cfg.Scheduler.RefreshInterval = time.Minute
	}
	if cfg.Billing.DefaultCurrency == "" {
		cfg.Billing.DefaultCurrency = "USD"
	}

	return cfg, nil
}
