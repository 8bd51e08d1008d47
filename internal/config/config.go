package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	LogLevel  string
	LogFormat string // "text" | "json"; empty picks by AppEnv
	LogFile   string // when set, logs are also written to a rotating file

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3ExportBucket string // empty disables export archiving

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost       string
	SMTPPort       int
	SMTPFrom       string
	SMTPUsername   string
	SMTPPassword   string
	SMTPEncryption string // "none" | "starttls" | "ssl_tls"

	SNSRegion  string
	SMSEnabled bool

	Reminder Reminder

	MetricsEnabled bool
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Subscriptions string
	Lists         string
	PriceHistory  string
}

// Reminder configures the periodic reminder sweep.
type Reminder struct {
	CronSpec         string        // robfig/cron spec, "@every 1h" by default
	Timezone         string        // IANA zone used to decide what "today" is
	MaxNotifications int           // per-profile cap; the evaluator never goes above 50
	SweepTimeout     time.Duration // upper bound for one sweep over all users
	PassTimeout      time.Duration // upper bound for a triggered single-user pass
}

// Location resolves Timezone, falling back to UTC for unknown or empty names.
func (r Reminder) Location() *time.Location {
	loc, err := r.LoadLocation()
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadLocation resolves Timezone and reports unknown names. Empty means UTC.
func (r Reminder) LoadLocation() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "")),
		LogFile:        getEnv("LOG_FILE", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Subscriptions: getEnv("DYNAMO_TABLE_SUBSCRIPTIONS", "subscriptions"),
			Lists:         getEnv("DYNAMO_TABLE_LISTS", "lists"),
			PriceHistory:  getEnv("DYNAMO_TABLE_PRICE_HISTORY", "price_history"),
		},
		S3ExportBucket:    getEnv("S3_EXPORT_BUCKET", ""),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPEncryption:    strings.ToLower(getEnv("SMTP_ENCRYPTION", "none")),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		SMSEnabled:        getEnvBool("SMS_ENABLED", false),
		Reminder: Reminder{
			CronSpec:         getEnv("REMINDER_CRON_SPEC", "@every 1h"),
			Timezone:         getEnv("REMINDER_TIMEZONE", "UTC"),
			MaxNotifications: getEnvInt("REMINDER_MAX_NOTIFICATIONS", 50),
			SweepTimeout:     getEnvDuration("REMINDER_SWEEP_TIMEOUT", 10*time.Minute),
			PassTimeout:      getEnvDuration("REMINDER_PASS_TIMEOUT", time.Minute),
		},
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
