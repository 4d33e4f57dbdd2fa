package vault

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

const (
	// SecretBytes is the entropy of a generated secret (160 bits).
	SecretBytes = 20
	// MinSecretLength is the shortest accepted override, 128 bits of base32.
	MinSecretLength = 26
)

var ErrInvalidSecret = errors.New("TOTP secret must be base32 (A-Z, 2-7) of at least 26 characters")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a random 160-bit secret in unpadded upper-case
// base32. The alphabet has no 0, 1, 8 or 9.
func GenerateSecret() (string, error) {
	raw := make([]byte, SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return encoding.EncodeToString(raw), nil
}

// NormalizeSecret canonicalises an operator-supplied secret. Spaces, dashes
// and padding are dropped and letters upper-cased; anything outside the
// base32 alphabet is rejected rather than skipped.
func NormalizeSecret(input string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(input) {
		switch {
		case r == ' ' || r == '\t' || r == '-' || r == '=':
			continue
		case (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7'):
			b.WriteRune(r)
		default:
			return "", ErrInvalidSecret
		}
	}

	secret := b.String()
	if len(secret) < MinSecretLength {
		return "", ErrInvalidSecret
	}
	// Lengths that leave a partial quantum of 1, 3 or 6 characters cannot be padded back to valid base32.
	switch len(secret) % 8 {
	case 1, 3, 6:
		return "", ErrInvalidSecret
	}
	raw, err := encoding.DecodeString(secret)
	if err != nil {
		return "", ErrInvalidSecret
	}
	// Re-encoding zeroes any unused trailing bits so equal keys have one spelling.
	return encoding.EncodeToString(raw), nil
}
