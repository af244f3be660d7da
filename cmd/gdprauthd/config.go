package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/MrEthical07/gdprAuth/notify"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// daemonConfig is read from GDPRAUTH_* variables, optionally seeded from a
// .env file.
type daemonConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	TrustProxy      bool          `env:"TRUST_PROXY" envDefault:"false"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass   string `env:"REDIS_PASSWORD"`

	AccessSecret  string        `env:"JWT_ACCESS_SECRET,required,unset"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET,required,unset"`
	Issuer        string        `env:"JWT_ISSUER" envDefault:"gdprauth"`
	Audience      string        `env:"JWT_AUDIENCE" envDefault:"gdprauth-clients"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"10m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`

	PseudonymSalt string `env:"PSEUDONYM_SALT,required,unset"`
	UseIndex      bool   `env:"PSEUDONYM_USE_INDEX" envDefault:"false"`

	ConfirmLinkBase string `env:"CONFIRM_LINK_BASE" envDefault:"http://localhost:8080/api/account/confirm-email"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD,unset"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Account Service"`
	SMTPTLS      string `env:"SMTP_TLS" envDefault:"starttls"`

	MetricsLogInterval time.Duration `env:"METRICS_LOG_INTERVAL" envDefault:"0s"`
}

func loadConfig(dotenv string) (daemonConfig, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return daemonConfig{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	var dc daemonConfig
	if err := env.ParseWithOptions(&dc, env.Options{Prefix: "GDPRAUTH_"}); err != nil {
		return daemonConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return dc, nil
}

func (dc daemonConfig) engineConfig() gdprAuth.Config {
	cfg := gdprAuth.DefaultConfig()
	cfg.JWT.AccessKey = []byte(dc.AccessSecret)
	cfg.JWT.RefreshKey = []byte(dc.RefreshSecret)
	cfg.JWT.Issuer = dc.Issuer
	cfg.JWT.Audience = dc.Audience
	cfg.JWT.AccessTTL = dc.AccessTTL
	cfg.JWT.RefreshTTL = dc.RefreshTTL
	cfg.Pseudonym.Salt = dc.PseudonymSalt
	cfg.Pseudonym.UseIndex = dc.UseIndex
	cfg.EmailConfirmation.LinkBaseURL = dc.ConfirmLinkBase
	return cfg
}

func (dc daemonConfig) smtpConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     dc.SMTPHost,
		Port:     dc.SMTPPort,
		Username: dc.SMTPUser,
		Password: dc.SMTPPassword,
		From:     dc.SMTPFrom,
		FromName: dc.SMTPFromName,
		Mode:     notify.TLSMode(dc.SMTPTLS),
	}
}
