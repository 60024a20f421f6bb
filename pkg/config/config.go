package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Asaas    AsaasConfig
	Checkout CheckoutConfig
	Audit    AuditConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AsaasConfig holds static gateway endpoints. API keys and the active environment
// live in the payment_settings table and are read per request.
type AsaasConfig struct {
	SandboxURL      string
	ProductionURL   string
	Timeout         time.Duration
	WebhookToken    string
	MinutesToExpire int
}

// CheckoutConfig tunes the checkout orchestrator.
type CheckoutConfig struct {
	MinimumCharge   float64
	ReuseTolerance  float64
	LockTTL         time.Duration
	CallbackBaseURL string
	CallbackSecret  string
	CallbackTTL     time.Duration
}

// AuditConfig sizes the best-effort audit writer.
type AuditConfig struct {
	Workers int
	Retries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Asaas = AsaasConfig{
		SandboxURL:      strings.TrimRight(v.GetString("ASAAS_SANDBOX_URL"), "/"),
		ProductionURL:   strings.TrimRight(v.GetString("ASAAS_PRODUCTION_URL"), "/"),
		Timeout:         parseDuration(v.GetString("ASAAS_TIMEOUT"), 15*time.Second),
		WebhookToken:    v.GetString("ASAAS_WEBHOOK_TOKEN"),
		MinutesToExpire: v.GetInt("ASAAS_CHECKOUT_MINUTES_TO_EXPIRE"),
	}

	cfg.Checkout = CheckoutConfig{
		MinimumCharge:   v.GetFloat64("CHECKOUT_MINIMUM_CHARGE"),
		ReuseTolerance:  v.GetFloat64("CHECKOUT_REUSE_TOLERANCE"),
		LockTTL:         parseDuration(v.GetString("CHECKOUT_LOCK_TTL"), 15*time.Second),
		CallbackBaseURL: strings.TrimRight(v.GetString("CHECKOUT_CALLBACK_BASE_URL"), "/"),
		CallbackSecret:  v.GetString("CHECKOUT_CALLBACK_SECRET"),
		CallbackTTL:     parseDuration(v.GetString("CHECKOUT_CALLBACK_TTL"), 72*time.Hour),
	}

	cfg.Audit = AuditConfig{
		Workers: v.GetInt("AUDIT_WORKERS"),
		Retries: v.GetInt("AUDIT_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_enrollment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_EXPIRATION", "1h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ASAAS_SANDBOX_URL", "https://api-sandbox.asaas.com")
	v.SetDefault("ASAAS_PRODUCTION_URL", "https://api.asaas.com")
	v.SetDefault("ASAAS_TIMEOUT", "15s")
	v.SetDefault("ASAAS_WEBHOOK_TOKEN", "")
	v.SetDefault("ASAAS_CHECKOUT_MINUTES_TO_EXPIRE", 60)

	v.SetDefault("CHECKOUT_MINIMUM_CHARGE", 5.0)
	v.SetDefault("CHECKOUT_REUSE_TOLERANCE", 0.5)
	v.SetDefault("CHECKOUT_LOCK_TTL", "15s")
	v.SetDefault("CHECKOUT_CALLBACK_BASE_URL", "http://localhost:5173")
	v.SetDefault("CHECKOUT_CALLBACK_SECRET", "dev_callback_secret")
	v.SetDefault("CHECKOUT_CALLBACK_TTL", "72h")

	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_RETRIES", 3)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
