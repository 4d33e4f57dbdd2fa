package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// MinEncryptionKeyLength is the minimum decoded size of TOTP_ENCRYPTION_KEY.
const MinEncryptionKeyLength = 32

var (
	ErrEncryptionKeyMissing = errors.New("TOTP encryption key is required")
	ErrEncryptionKeyShort   = fmt.Errorf("TOTP encryption key must decode to at least %d bytes", MinEncryptionKeyLength)
)

type Config struct {
	App           AppConfig           `envPrefix:"APP_"`
	Server        ServerConfig        `envPrefix:"SERVER_"`
	Log           LogConfig           `envPrefix:"LOG_"`
	Database      DatabaseConfig      `envPrefix:"DATABASE_"`
	Session       SessionConfig       `envPrefix:"SESSION_"`
	Auth          AuthConfig          `envPrefix:"AUTH_"`
	TOTP          TOTPConfig          `envPrefix:"TOTP_"`
	Recovery      RecoveryConfig      `envPrefix:"RECOVERY_"`
	Throttle      ThrottleConfig      `envPrefix:"THROTTLE_"`
	TrustedDevice TrustedDeviceConfig `envPrefix:"TRUSTED_DEVICE_"`
	CSRF          CSRFConfig          `envPrefix:"CSRF_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"Showcase Admin"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"showcase.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type SessionConfig struct {
	Enabled     bool          `env:"ENABLED" envDefault:"true"`
	Store       string        `env:"STORE" envDefault:"database"`
	Name        string        `env:"NAME" envDefault:"showcase_admin_session"`
	Path        string        `env:"PATH" envDefault:"/"`
	Domain      string        `env:"DOMAIN"`
	Secure      bool          `env:"SECURE" envDefault:"true"`
	HttpOnly    bool          `env:"HTTP_ONLY" envDefault:"true"`
	SameSite    string        `env:"SAME_SITE" envDefault:"strict"`
	Lifetime    time.Duration `env:"LIFETIME" envDefault:"8h"`
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	PendingTTL  time.Duration `env:"PENDING_TTL" envDefault:"5m"`
}

type AuthConfig struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"12"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"false"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"12"`
}

type TOTPConfig struct {
	Issuer string `env:"ISSUER" envDefault:"Showcase Admin"`
	Period uint   `env:"PERIOD" envDefault:"30"`
	Digits int    `env:"DIGITS" envDefault:"6"`
	Skew   uint   `env:"SKEW" envDefault:"1"`
	// Cipher selects the AEAD used for the secret envelope: xchacha20-poly1305 or aes-256-gcm.
	Cipher        string `env:"CIPHER" envDefault:"xchacha20-poly1305"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

type RecoveryConfig struct {
	CodeCount  int `env:"CODE_COUNT" envDefault:"10"`
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

type ThrottleConfig struct {
	Store         string        `env:"STORE" envDefault:"memory"`
	Window        time.Duration `env:"WINDOW" envDefault:"10m"`
	Threshold     int           `env:"THRESHOLD" envDefault:"5"`
	Lockout       time.Duration `env:"LOCKOUT" envDefault:"10m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix     string        `env:"KEY_PREFIX" envDefault:"showcase:login"`
}

type TrustedDeviceConfig struct {
	Enabled      bool          `env:"ENABLED" envDefault:"true"`
	Lifetime     time.Duration `env:"LIFETIME" envDefault:"720h"`
	CookieName   string        `env:"COOKIE_NAME" envDefault:"showcase_trusted_device"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`
}

type CSRFConfig struct {
	Enabled        bool   `env:"ENABLED" envDefault:"true"`
	TokenLength    uint8  `env:"TOKEN_LENGTH" envDefault:"32"`
	TokenLookup    string `env:"TOKEN_LOOKUP" envDefault:"header:X-CSRF-Token"`
	ContextKey     string `env:"CONTEXT_KEY" envDefault:"csrf"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"_csrf"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/"`
	CookieMaxAge   int    `env:"COOKIE_MAX_AGE" envDefault:"86400"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"strict"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := LoadConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.TOTP.Key(); err != nil {
		return err
	}

	switch c.TOTP.Cipher {
	case "xchacha20-poly1305", "aes-256-gcm":
	default:
		return fmt.Errorf("unsupported TOTP cipher: %s", c.TOTP.Cipher)
	}

	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return fmt.Errorf("TOTP digits must be 6 or 8, got %d", c.TOTP.Digits)
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP period must be positive")
	}
	if c.TOTP.Skew > 1 {
		return fmt.Errorf("TOTP skew must be 0 or 1, got %d", c.TOTP.Skew)
	}

	if c.Throttle.Threshold <= 0 {
		return errors.New("throttle threshold must be positive")
	}
	if c.Throttle.Window <= 0 || c.Throttle.Lockout <= 0 {
		return errors.New("throttle window and lockout must be positive")
	}

	if c.Recovery.CodeCount <= 0 {
		return errors.New("recovery code count must be positive")
	}

	return nil
}

// Key decodes the deployment master key. Hex and standard base64 are accepted.
func (c TOTPConfig) Key() ([]byte, error) {
	raw := strings.TrimSpace(c.EncryptionKey)
	if raw == "" {
		return nil, ErrEncryptionKeyMissing
	}

	var key []byte
	if decoded, err := hex.DecodeString(raw); err == nil {
		key = decoded
	} else if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		key = decoded
	} else {
		return nil, errors.New("TOTP encryption key must be hex or base64 encoded")
	}

	if len(key) < MinEncryptionKeyLength {
		return nil, ErrEncryptionKeyShort
	}
	return key, nil
}
