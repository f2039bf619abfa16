package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	PayoutModeManual    = "manual"
	PayoutModeAutomatic = "automatic"
)

// Config regroupe la configuration du serveur, chargée depuis l'environnement.
type Config struct {
	Port        string `mapstructure:"PORT"`
	AppURL      string `mapstructure:"APP_URL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	ScyllaHosts    string `mapstructure:"SCYLLA_HOSTS"`
	ScyllaKeyspace string `mapstructure:"SCYLLA_KEYSPACE"`
	ScyllaUsername string `mapstructure:"SCYLLA_USERNAME"`
	ScyllaPassword string `mapstructure:"SCYLLA_PASSWORD"`

	ElasticURL      string `mapstructure:"ELASTIC_URL"`
	ElasticUser     string `mapstructure:"ELASTIC_USER"`
	ElasticPassword string `mapstructure:"ELASTIC_PASSWORD"`
	ElasticIndex    string `mapstructure:"ELASTIC_INDEX"`

	MinIOEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinIOUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	MinIOBucket    string `mapstructure:"MINIO_BUCKET"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	Currency            string `mapstructure:"CURRENCY"`

	DailyAPIKey string `mapstructure:"DAILY_API_KEY"`
	DailyAPIURL string `mapstructure:"DAILY_API_URL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	// Montants et parts lus en texte puis convertis en décimal exact (voir Amounts).
	PayoutHoldDays       int    `mapstructure:"PAYOUT_HOLD_DAYS"`
	CreatorShare         string `mapstructure:"CREATOR_SHARE"`
	FeeTolerance         string `mapstructure:"FEE_TOLERANCE"`
	DebtBlockThreshold   string `mapstructure:"DEBT_BLOCK_THRESHOLD"`
	ReversalWindowDays   int    `mapstructure:"REVERSAL_WINDOW_DAYS"`
	MinPayoutAmount      string `mapstructure:"MIN_PAYOUT_AMOUNT"`
	PayoutMode           string `mapstructure:"PAYOUT_MODE"`
	ReleaseSweepSchedule string `mapstructure:"RELEASE_SWEEP_SCHEDULE"`
	PayoutSweepSchedule  string `mapstructure:"PAYOUT_SWEEP_SCHEDULE"`

	SideEffectTimeout   time.Duration `mapstructure:"SIDE_EFFECT_TIMEOUT"`
	StatementPDFEnabled bool          `mapstructure:"STATEMENT_PDF_ENABLED"`

	Amounts Amounts `mapstructure:"-"`
}

// Amounts porte les réglages financiers validés, sans passage par float64.
type Amounts struct {
	CreatorShare       decimal.Decimal
	FeeTolerance       decimal.Decimal
	DebtBlockThreshold decimal.Decimal
	MinPayoutAmount    decimal.Decimal
}

var keys = []string{
	"PORT", "APP_URL", "DATABASE_URL", "CORS_ORIGINS", "JWT_SECRET",
	"REDIS_HOST", "REDIS_PASSWORD",
	"SCYLLA_HOSTS", "SCYLLA_KEYSPACE", "SCYLLA_USERNAME", "SCYLLA_PASSWORD",
	"ELASTIC_URL", "ELASTIC_USER", "ELASTIC_PASSWORD", "ELASTIC_INDEX",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_USE_SSL", "MINIO_BUCKET",
	"RABBITMQ_URL",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "CURRENCY",
	"DAILY_API_KEY", "DAILY_API_URL",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM",
	"PAYOUT_HOLD_DAYS", "CREATOR_SHARE", "FEE_TOLERANCE", "DEBT_BLOCK_THRESHOLD",
	"REVERSAL_WINDOW_DAYS", "MIN_PAYOUT_AMOUNT", "PAYOUT_MODE",
	"RELEASE_SWEEP_SCHEDULE", "PAYOUT_SWEEP_SCHEDULE",
	"SIDE_EFFECT_TIMEOUT", "STATEMENT_PDF_ENABLED",
}

// Load charge le fichier .env s'il existe.
func Load() {
	err := godotenv.Load(".env")
	if err != nil {
		slog.Info("⚠️ Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		slog.Info("✅ Fichier .env chargé avec succès")
	}
}

// LoadConfig lit l'environnement, applique les valeurs par défaut et valide le résultat.
func LoadConfig() (*Config, error) {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_URL", "http://localhost:3000")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	viper.SetDefault("SCYLLA_KEYSPACE", "callastar_audit")
	viper.SetDefault("ELASTIC_INDEX", "ledger-events")
	viper.SetDefault("MINIO_BUCKET", "callastar-ledger")
	viper.SetDefault("CURRENCY", "eur")
	viper.SetDefault("DAILY_API_URL", "https://api.daily.co/v1")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MAIL_FROM", "noreply@callastar.com")
	viper.SetDefault("PAYOUT_HOLD_DAYS", 7)
	viper.SetDefault("CREATOR_SHARE", "0.85")
	viper.SetDefault("FEE_TOLERANCE", "0.02")
	viper.SetDefault("DEBT_BLOCK_THRESHOLD", "100")
	viper.SetDefault("REVERSAL_WINDOW_DAYS", 180)
	viper.SetDefault("MIN_PAYOUT_AMOUNT", "10")
	viper.SetDefault("PAYOUT_MODE", PayoutModeManual)
	viper.SetDefault("RELEASE_SWEEP_SCHEDULE", "*/15 * * * *") // toutes les 15 minutes
	viper.SetDefault("PAYOUT_SWEEP_SCHEDULE", "0 6 * * 1")     // lundi 06:00
	viper.SetDefault("SIDE_EFFECT_TIMEOUT", "10s")
	viper.SetDefault("STATEMENT_PDF_ENABLED", false)
	viper.AutomaticEnv()

	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Currency = strings.ToLower(cfg.Currency)
	cfg.PayoutMode = strings.ToLower(cfg.PayoutMode)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL manquant")
	}
	if cfg.PayoutMode != PayoutModeManual && cfg.PayoutMode != PayoutModeAutomatic {
		return nil, fmt.Errorf("PAYOUT_MODE invalide: %q", cfg.PayoutMode)
	}
	amounts, err := parseAmounts(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.Amounts = amounts
	if cfg.PayoutHoldDays < 0 {
		return nil, fmt.Errorf("PAYOUT_HOLD_DAYS négatif: %d", cfg.PayoutHoldDays)
	}

	return &cfg, nil
}

func parseAmounts(cfg *Config) (Amounts, error) {
	var a Amounts
	fields := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"CREATOR_SHARE", cfg.CreatorShare, &a.CreatorShare},
		{"FEE_TOLERANCE", cfg.FeeTolerance, &a.FeeTolerance},
		{"DEBT_BLOCK_THRESHOLD", cfg.DebtBlockThreshold, &a.DebtBlockThreshold},
		{"MIN_PAYOUT_AMOUNT", cfg.MinPayoutAmount, &a.MinPayoutAmount},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return a, fmt.Errorf("%s invalide: %q", f.key, f.raw)
		}
		if v.IsNegative() {
			return a, fmt.Errorf("%s négatif: %s", f.key, v)
		}
		*f.dst = v
	}
	if !a.CreatorShare.IsPositive() || a.CreatorShare.GreaterThan(decimal.NewFromInt(1)) {
		return a, fmt.Errorf("CREATOR_SHARE doit être dans ]0,1], reçu %s", a.CreatorShare)
	}
	return a, nil
}

func (c *Config) HoldPeriod() time.Duration {
	return time.Duration(c.PayoutHoldDays) * 24 * time.Hour
}

func (c *Config) ReversalWindow() time.Duration {
	return time.Duration(c.ReversalWindowDays) * 24 * time.Hour
}

func (c *Config) AutomaticPayouts() bool {
	return c.PayoutMode == PayoutModeAutomatic
}

// ScyllaHostList découpe SCYLLA_HOSTS en liste d'hôtes non vides.
func (c *Config) ScyllaHostList() []string {
	var hosts []string
	for _, h := range strings.Split(c.ScyllaHosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
