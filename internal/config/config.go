package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	DB       DBConfig
	RedisURL string
	AMQPURL  string

	JWTSecret string

	Payment  PaymentConfig
	Booking  BookingConfig
	SMTP     SMTPConfig
	SMS      SMSConfig
	Firebase FirebaseConfig
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

// DSN renders the postgres connection string used by gorm.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type PaymentConfig struct {
	StripeSecretKey string
	Currency        string
	MinimumCharge   float64
	GatewayTimeout  time.Duration
}

type BookingConfig struct {
	GraceWindow       time.Duration
	SweepInterval     time.Duration
	LockTTL           time.Duration
	DefaultRefundRate float64
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Password string
}

// Enabled reports whether enough settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type SMSConfig struct {
	Username string
	APIKey   string
	SenderID string
	Sandbox  bool
}

func (c SMSConfig) Enabled() bool {
	return c.Username != "" && c.APIKey != ""
}

type FirebaseConfig struct {
	CredentialsPath string
}

// Load reads .env (if present) and the process environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("APP_ENV", "development"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "wheelster"),
			Port:     getEnv("DB_PORT", "5432"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AMQPURL:   os.Getenv("AMQP_URL"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			From:     os.Getenv("SMTP_FROM"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		SMS: SMSConfig{
			Username: os.Getenv("SMS_USERNAME"),
			APIKey:   os.Getenv("SMS_API_KEY"),
			SenderID: os.Getenv("SMS_SENDER_ID"),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		},
	}

	var err error
	if cfg.SMS.Sandbox, err = getBool("SMS_SANDBOX", false); err != nil {
		return Config{}, err
	}

	cfg.Payment = PaymentConfig{
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		Currency:        getEnv("PAYMENT_CURRENCY", "inr"),
	}
	if cfg.Payment.MinimumCharge, err = getFloat("PAYMENT_MINIMUM_CHARGE", 50); err != nil {
		return Config{}, err
	}
	if cfg.Payment.GatewayTimeout, err = getDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.Booking.GraceWindow, err = getDuration("BOOKING_GRACE_WINDOW", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Booking.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Booking.LockTTL, err = getDuration("BOOKING_LOCK_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Booking.DefaultRefundRate, err = getFloat("REFUND_DEFAULT_RATE", 0.8); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Booking.DefaultRefundRate < 0 || c.Booking.DefaultRefundRate > 1 {
		return fmt.Errorf("REFUND_DEFAULT_RATE must be within [0,1], got %v", c.Booking.DefaultRefundRate)
	}
	if c.Booking.SweepInterval <= 0 || c.Booking.GraceWindow <= 0 {
		return errors.New("SWEEP_INTERVAL and BOOKING_GRACE_WINDOW must be positive")
	}
	if c.Payment.MinimumCharge < 0 {
		return errors.New("PAYMENT_MINIMUM_CHARGE must not be negative")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
