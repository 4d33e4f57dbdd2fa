package testutils

import (
	"time"

	"github.com/tech-arch1tect/showcase/config"
	"golang.org/x/crypto/bcrypt"
)

// TestEncryptionKey is a 32 byte hex master key for the secret vault.
const TestEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test Showcase",
			URL:  "http://localhost:8080",
		},
		Server: config.ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Session: config.SessionConfig{
			Enabled:     true,
			Store:       "memory",
			Name:        "test_session",
			Path:        "/",
			HttpOnly:    true,
			SameSite:    "strict",
			Lifetime:    8 * time.Hour,
			IdleTimeout: 30 * time.Minute,
			PendingTTL:  5 * time.Minute,
		},
		Auth: config.AuthConfig{
			MinLength:     12,
			RequireUpper:  true,
			RequireLower:  true,
			RequireNumber: true,
			BcryptCost:    bcrypt.MinCost,
		},
		TOTP: config.TOTPConfig{
			Issuer:        "Test Showcase",
			Period:        30,
			Digits:        6,
			Skew:          1,
			Cipher:        "xchacha20-poly1305",
			EncryptionKey: TestEncryptionKey,
		},
		Recovery: config.RecoveryConfig{
			CodeCount:  10,
			BcryptCost: bcrypt.MinCost,
		},
		Throttle: config.ThrottleConfig{
			Store:         "memory",
			Window:        10 * time.Minute,
			Threshold:     5,
			Lockout:       10 * time.Minute,
			SweepInterval: time.Minute,
			KeyPrefix:     "test:login",
		},
		TrustedDevice: config.TrustedDeviceConfig{
			Enabled:    true,
			Lifetime:   720 * time.Hour,
			CookieName: "test_trusted_device",
		},
		CSRF: config.CSRFConfig{
			Enabled: false,
		},
	}
}

var TestPasswords = struct {
	Valid    string
	TooShort string
	NoUpper  string
	NoLower  string
	NoNumber string
}{
	Valid:    "Showcase-Admin-2024",
	TooShort: "Short1A",
	NoUpper:  "showcase-admin-2024",
	NoLower:  "SHOWCASE-ADMIN-2024",
	NoNumber: "Showcase-Admin-Pass",
}

// TestSecret is a base32 TOTP secret of 160 bits.
const TestSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
