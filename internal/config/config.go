package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from the environment
type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"tianyishenshu"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// JWTSecret signs every session token. Rotating it invalidates all outstanding sessions.
	JWTSecret       string        `env:"JWT_SECRET_KEY,required"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"tianyishenshu"`
	SessionShortTTL time.Duration `env:"SESSION_SHORT_TTL" envDefault:"24h"`
	SessionLongTTL  time.Duration `env:"SESSION_LONG_TTL" envDefault:"720h"`

	SuperAdminPhone string `env:"SUPER_ADMIN_PHONE"`
	BcryptCost      int    `env:"BCRYPT_COST" envDefault:"12"`
	// RegistrationRequiresExchangeCode restricts account creation to the exchange-code login flow.
	RegistrationRequiresExchangeCode bool `env:"REGISTRATION_REQUIRES_EXCHANGE_CODE" envDefault:"false"`

	SMSCodeTTL            time.Duration `env:"SMS_CODE_TTL" envDefault:"5m"`
	SMSAPIKey             string        `env:"SMS_API_KEY"`
	SMSBaseURL            string        `env:"SMS_BASE_URL"`
	SMSSender             string        `env:"SMS_SENDER"`
	SMSReturnCodeToClient bool          `env:"SMS_RETURN_CODE_TO_CLIENT" envDefault:"false"`

	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
}

// Load reads .env (if present) and parses the environment into a validated Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading, relying on environment variables")
	}
	return Parse()
}

// Parse builds a Config from the current environment without touching .env files
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET_KEY must not be blank")
	}
	if c.SessionShortTTL <= 0 || c.SessionLongTTL <= 0 {
		return errors.New("config: SESSION_SHORT_TTL and SESSION_LONG_TTL must be positive")
	}
	if c.SessionLongTTL < c.SessionShortTTL {
		return errors.New("config: SESSION_LONG_TTL must not be shorter than SESSION_SHORT_TTL")
	}
	if c.SMSCodeTTL <= 0 {
		return errors.New("config: SMS_CODE_TTL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("config: STORE_TIMEOUT must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.SMSReturnCodeToClient && c.IsProduction() {
		return errors.New("config: SMS_RETURN_CODE_TO_CLIENT must not be true when APP_ENV=production")
	}
	if c.IsProduction() && (strings.TrimSpace(c.SMSAPIKey) == "" || strings.TrimSpace(c.SMSBaseURL) == "") {
		return errors.New("config: SMS_API_KEY and SMS_BASE_URL are required when APP_ENV=production")
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// DSN returns the key/value connection string used by pgxpool
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// DatabaseURL returns the postgres:// URL form required by the migration runner
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}
