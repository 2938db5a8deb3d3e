package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sosodev/duration"
	dbutils "github.com/tendant/db-utils/db"
)

// TwoFactorConfig controls when a second factor is required and how codes are issued.
type TwoFactorConfig struct {
	Enabled   bool   `env:"TWOFACTOR_ENABLED" env-default:"false"`
	Force     bool   `env:"TWOFACTOR_FORCE" env-default:"false"`
	FieldName string `env:"TWOFACTOR_FIELD_NAME" env-default:"twoFactorCode"`
	// ISO 8601 (PT10M) or Go (10m) duration. Empty or zero means codes never expire.
	CodeTTLPeriod string `env:"TWOFACTOR_CODE_TTL" env-default:""`
	// random or totp
	CodeGenerator string `env:"TWOFACTOR_CODE_GENERATOR" env-default:"random"`
	// console or notification
	CodeSender string `env:"TWOFACTOR_CODE_SENDER" env-default:"console"`
}

// StoreConfig selects the user repository backend.
type StoreConfig struct {
	Type     string `env:"STORE_TYPE" env-default:"memory"` // memory, file or postgres
	FilePath string `env:"STORE_FILE_PATH" env-default:"data/users.json"`
	// Optional user created at startup in the memory store
	SeedLogin    string `env:"STORE_SEED_LOGIN" env-default:""`
	SeedPassword string `env:"STORE_SEED_PASSWORD" env-default:""`
	SeedPhone    string `env:"STORE_SEED_PHONE" env-default:""`
}

type DatabaseConfig struct {
	Host     string `env:"TWOFACTOR_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"TWOFACTOR_PG_PORT" env-default:"5432"`
	Database string `env:"TWOFACTOR_PG_DATABASE" env-default:"twofactor_db"`
	User     string `env:"TWOFACTOR_PG_USER" env-default:"twofactor"`
	Password string `env:"TWOFACTOR_PG_PASSWORD" env-default:"pwd"`
}

func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

type SessionConfig struct {
	JwtSecret    string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer       string `env:"JWT_ISSUER" env-default:"simple-2fa"`
	ExpiryPeriod string `env:"SESSION_EXPIRY" env-default:"PT1H"`
}

type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// SMSConfig holds Twilio credentials. Without them sms codes cannot be sent
// in notification mode.
type SMSConfig struct {
	TwilioAccountSid string `env:"TWILIO_ACCOUNT_SID" env-default:""`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN" env-default:""`
	TwilioFrom       string `env:"TWILIO_FROM" env-default:"+15005550006"`
}

// RateLimitConfig covers the per-IP limit on the login endpoints and the
// optional per-user limit on code verification.
type RateLimitConfig struct {
	PerIPEnabled     bool    `env:"RATE_LIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity    int     `env:"RATE_LIMIT_PER_IP_CAPACITY" env-default:"30"`
	PerIPRefillRate  float64 `env:"RATE_LIMIT_PER_IP_REFILL_RATE" env-default:"0.5"`
	VerifyEnabled    bool    `env:"RATE_LIMIT_VERIFY_ENABLED" env-default:"false"`
	VerifyCapacity   int     `env:"RATE_LIMIT_VERIFY_CAPACITY" env-default:"5"`
	VerifyRefillRate float64 `env:"RATE_LIMIT_VERIFY_REFILL_RATE" env-default:"0.1"`
	BucketTTLPeriod  string  `env:"RATE_LIMIT_BUCKET_TTL" env-default:"PT1H"`
}

// Config is everything the twofactord server reads from the environment.
type Config struct {
	TwoFactor TwoFactorConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Email     EmailConfig
	SMS       SMSConfig
	RateLimit RateLimitConfig
}

// Load reads Config from the environment, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read config from env: %w", err)
	}
	return cfg, nil
}

// ParsePeriod parses either an ISO 8601 duration (PT5M) or a Go duration (5m).
// An empty string yields zero.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		d, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		return d.ToTimeDuration(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// CodeTTL returns the parsed code lifetime.
func (c TwoFactorConfig) CodeTTL() (time.Duration, error) {
	return ParsePeriod(c.CodeTTLPeriod)
}

// Expiry returns the parsed session token lifetime.
func (c SessionConfig) Expiry() (time.Duration, error) {
	return ParsePeriod(c.ExpiryPeriod)
}

// BucketTTL returns how long idle rate limit buckets are kept.
func (c RateLimitConfig) BucketTTL() (time.Duration, error) {
	return ParsePeriod(c.BucketTTLPeriod)
}
