package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/db/models"
)

type Configuration struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Security SecurityConfig
	Billing  BillingConfig
	ESign    ESignConfig
	Mail     MailConfig
	Storage  StorageConfig
	Tiers    TierConfig
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8000"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	Username        string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD" envDefault:"password"`
	Name            string        `env:"DB_NAME" envDefault:"ndarite"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Username, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type SecurityConfig struct {
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"30m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	ResetTokenExpiry   time.Duration `env:"RESET_TOKEN_EXPIRY" envDefault:"1h"`
	VerifyTokenExpiry  time.Duration `env:"VERIFY_TOKEN_EXPIRY" envDefault:"48h"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	StrictRateLimit    int           `env:"STRICT_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
}

type BillingConfig struct {
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StarterPriceID      string `env:"STRIPE_STARTER_PRICE_ID"`
	ProfessionalPriceID string `env:"STRIPE_PROFESSIONAL_PRICE_ID"`
	EnterprisePriceID   string `env:"STRIPE_ENTERPRISE_PRICE_ID"`
	CheckoutSuccessURL  string `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:3000/dashboard?upgraded=1"`
	CheckoutCancelURL   string `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:3000/pricing"`
}

type ESignConfig struct {
	BaseURL       string `env:"ESIGN_BASE_URL"`
	AccountID     string `env:"ESIGN_ACCOUNT_ID"`
	AccessToken   string `env:"ESIGN_ACCESS_TOKEN"`
	CallbackURL   string `env:"ESIGN_CALLBACK_URL"`
	WebhookSecret string `env:"ESIGN_WEBHOOK_SECRET"`
}

func (e ESignConfig) Enabled() bool {
	return e.BaseURL != "" && e.AccountID != "" && e.AccessToken != ""
}

type MailConfig struct {
	SMTPHost  string `env:"SMTP_HOST"`
	SMTPPort  int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser  string `env:"SMTP_USER"`
	SMTPPass  string `env:"SMTP_PASSWORD"`
	FromEmail string `env:"FROM_EMAIL" envDefault:"noreply@ndarite.com"`
	FromName  string `env:"FROM_NAME" envDefault:"NDARite"`
	AppURL    string `env:"APP_URL" envDefault:"http://localhost:3000"`
}

func (m MailConfig) Enabled() bool {
	return m.SMTPHost != ""
}

type StorageConfig struct {
	DocumentDir string `env:"DOCUMENT_DIR" envDefault:"data/documents"`
}

type TierConfig struct {
	FreeLimit         int `env:"FREE_TIER_DOCUMENT_LIMIT" envDefault:"3"`
	StarterLimit      int `env:"STARTER_TIER_DOCUMENT_LIMIT" envDefault:"25"`
	ProfessionalLimit int `env:"PROFESSIONAL_TIER_DOCUMENT_LIMIT" envDefault:"100"`
	EnterpriseLimit   int `env:"ENTERPRISE_TIER_DOCUMENT_LIMIT" envDefault:"-1"`
}

// DocumentLimits maps each tier to its monthly document allowance.
// -1 means unlimited.
func (t TierConfig) DocumentLimits() map[models.Tier]int {
	return map[models.Tier]int{
		models.TierFree:         t.FreeLimit,
		models.TierStarter:      t.StarterLimit,
		models.TierProfessional: t.ProfessionalLimit,
		models.TierEnterprise:   t.EnterpriseLimit,
	}
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Configuration, error) {
	_ = godotenv.Load()

	cfg := &Configuration{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

func LogConfig(cfg *Configuration, logger *zap.Logger) {
	logger.Info("Application configuration",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Name),
		zap.Bool("redis_enabled", cfg.Redis.Addr != ""),
		zap.Bool("billing_enabled", cfg.Billing.StripeSecretKey != ""),
		zap.Bool("esign_enabled", cfg.ESign.Enabled()),
		zap.Bool("mail_enabled", cfg.Mail.Enabled()),
		zap.String("document_dir", cfg.Storage.DocumentDir),
		zap.Int("rate_limit_per_minute", cfg.Security.RateLimitPerMinute),
	)
}
