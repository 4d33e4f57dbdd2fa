package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	CipherXChaCha20Poly1305 = "xchacha20-poly1305"
	CipherAES256GCM         = "aes-256-gcm"

	subKeySize = 32
)

var (
	// ErrIntegrity means an envelope failed authentication. It is never retried.
	ErrIntegrity         = errors.New("secret envelope failed integrity check")
	ErrUnsupportedCipher = errors.New("unsupported cipher")
	ErrMasterKeyShort    = errors.New("master key must be at least 32 bytes")
)

// additionalData binds envelopes to their purpose so ciphertext from another
// use of the same master key does not authenticate here.
var additionalData = []byte("showcase/admin/totp-secret")

// Envelope is an encrypted TOTP secret split into its three stored parts.
type Envelope struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

type Vault struct {
	aead   cipher.AEAD
	cipher string
	random io.Reader
}

// New derives a cipher-specific sub-key from masterKey with HKDF-SHA256.
func New(masterKey []byte, cipherName string) (*Vault, error) {
	if len(masterKey) < subKeySize {
		return nil, ErrMasterKeyShort
	}
	if cipherName == "" {
		cipherName = CipherXChaCha20Poly1305
	}

	subKey := make([]byte, subKeySize)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte("showcase totp vault v1 "+cipherName))
	if _, err := io.ReadFull(kdf, subKey); err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}

	var aead cipher.AEAD
	var err error
	switch cipherName {
	case CipherXChaCha20Poly1305:
		aead, err = chacha20poly1305.NewX(subKey)
	case CipherAES256GCM:
		var block cipher.Block
		block, err = aes.NewCipher(subKey)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCipher, cipherName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialise %s: %w", cipherName, err)
	}

	return &Vault{aead: aead, cipher: cipherName, random: rand.Reader}, nil
}

func (v *Vault) Cipher() string {
	return v.cipher
}

// Encrypt seals secret under a fresh random nonce.
func (v *Vault) Encrypt(secret string) (*Envelope, error) {
	if secret == "" {
		return nil, ErrInvalidSecret
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(v.random, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(secret), additionalData)
	split := len(sealed) - v.aead.Overhead()

	return &Envelope{
		Ciphertext: sealed[:split],
		IV:         nonce,
		Tag:        sealed[split:],
	}, nil
}

// Decrypt authenticates the envelope before returning any plaintext. Every
// failure is ErrIntegrity.
func (v *Vault) Decrypt(env *Envelope) (string, error) {
	if env == nil ||
		len(env.Ciphertext) == 0 ||
		len(env.IV) != v.aead.NonceSize() ||
		len(env.Tag) != v.aead.Overhead() {
		return "", ErrIntegrity
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := v.aead.Open(nil, env.IV, sealed, additionalData)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}
