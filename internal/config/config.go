package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App         App
	HTTP        HTTP
	Postgres    Postgres
	Redis       Redis
	Pricing     Pricing
	PriceSource PriceSource
	Payment     Payment
	Trading     Trading
	Sweeper     Sweeper
	Worker      Worker
	Bot         Bot
}

type App struct {
	Name     string `env:"APP_NAME" envDefault:"cyberlombard"`
	Version  string `env:"APP_VERSION" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type HTTP struct {
	ListenAddress        string        `env:"HTTP_LISTEN_ADDRESS" envDefault:":8080"`
	ProbeListenAddress   string        `env:"PROBE_LISTEN_ADDRESS" envDefault:":8081"`
	MetricsListenAddress string        `env:"METRICS_LISTEN_ADDRESS" envDefault:":9090"`
	ShutdownTimeout      time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadHeaderTimeout    time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	LogFieldMaxLen       int           `env:"HTTP_LOG_FIELD_MAX_LEN" envDefault:"4096"`
	// Пустые токены отключают проверку, только для dev окружения
	AdminToken   string `env:"ADMIN_TOKEN" json:"-"`
	WebhookToken string `env:"WEBHOOK_TOKEN" json:"-"`
}

type Bot struct {
	Token string `env:"BOT_TOKEN" json:"-"`
	// ChatID чат операторов для уведомлений о сделках
	ChatID   int64   `env:"BOT_CHAT_ID"`
	AdminIDs []int64 `env:"BOT_ADMIN_IDS" envSeparator:","`
}

// Enabled бот настроен и может быть запущен.
func (b Bot) Enabled() bool {
	return b.Token != ""
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	if err := config.Sweeper.validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}
