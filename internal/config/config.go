package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var defaultAllowedOrigins = []string{
	"https://oscarmcglone.com",
	"https://ratethiscrow.oscarmcglone.com",
	"https://crows.oscarmcglone.com",
	"https://ratethiscrow.site",
	"http://127.0.0.1:5500",
}

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	SiteURL string // public frontend, linked from crowmail
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Upload gate
	UploadPass         string // plain text, or a full bcrypt hash ($2a$/$2b$/$2y$, 60 chars)
	UploadRequireToken bool
	UploadTokenSecret  string
	UploadTokenExpiry  time.Duration

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Ratings
	RatingMin           float64
	RatingMax           float64
	LeaderboardFraction float64

	// Crowmail
	VerificationKeyExpiry time.Duration

	// HTTP
	CORSAllowedOrigins []string
	HandlerTimeout     time.Duration
	PasswordRateLimit  int // attempts per 15 minutes per IP
	SubscribeRateLimit int // attempts per hour per IP
	TrustedProxyHops   int // reverse proxies appending to X-Forwarded-For; 0 keys limits on the socket address

	// Observability (optional)
	SentryDSN string

	// Storage (optional, S3-compatible). Image file uploads are disabled when S3Bucket is empty.
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	dbDriver, dbConnection := Database()

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Rate This Crow"),
		AppEnv:  envString("APP_ENV", "development"),
		AppURL:  envRequired("APP_URL"), // Required: base URL for verification links
		SiteURL: envString("SITE_URL", "https://ratethiscrow.site"),
		Port:    envString("PORT", "3000"),

		// Database
		DBDriver:     dbDriver,
		DBConnection: dbConnection,

		// Upload gate
		UploadPass:         envString("UPLOAD_PASS", ""),
		UploadRequireToken: envBool("UPLOAD_REQUIRE_TOKEN", false),
		UploadTokenSecret:  envString("UPLOAD_TOKEN_SECRET", ""),
		UploadTokenExpiry:  envDuration("UPLOAD_TOKEN_EXPIRY", 12*time.Hour),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "crowmail@ratethiscrow.site"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Ratings
		RatingMin:           envFloat("RATING_MIN", 1),
		RatingMax:           envFloat("RATING_MAX", 5),
		LeaderboardFraction: envFloat("LEADERBOARD_FRACTION", 0.25),

		// Crowmail
		VerificationKeyExpiry: envDuration("VERIFICATION_KEY_EXPIRY", 24*time.Hour),

		// HTTP
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		HandlerTimeout:     envDuration("HANDLER_TIMEOUT", 15*time.Second),
		PasswordRateLimit:  envInt("RATE_LIMIT_PASSWORD", 5),
		SubscribeRateLimit: envInt("RATE_LIMIT_SUBSCRIBE", 10),
		TrustedProxyHops:   envInt("TRUSTED_PROXY_HOPS", 0),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	if cfg.UploadTokenSecret == "" {
		cfg.UploadTokenSecret = cfg.UploadPass
	}

	if cfg.RatingMin > cfg.RatingMax {
		slog.Warn("config rating range inverted, using defaults", "min", cfg.RatingMin, "max", cfg.RatingMax)
		cfg.RatingMin, cfg.RatingMax = 1, 5
	}

	if cfg.LeaderboardFraction <= 0 || cfg.LeaderboardFraction > 1 {
		slog.Warn("config leaderboard fraction out of range, using default", "value", cfg.LeaderboardFraction)
		cfg.LeaderboardFraction = 0.25
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// Database reads only the database settings, for tools that need nothing else.
func Database() (driver, connection string) {
	driver = envString("DB_DRIVER", "sqlite")
	connection = envString("DB_CONNECTION", "./data/crows.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	return driver, connection
}

// validateProduction ensures all required services are configured for production deployments.
// Development logs emails instead of sending them.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.UploadRequireToken && cfg.UploadTokenSecret == "" {
		slog.Error("UPLOAD_REQUIRE_TOKEN needs UPLOAD_TOKEN_SECRET or UPLOAD_PASS")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList reads a comma separated list, dropping blank entries.
func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != ""
}
