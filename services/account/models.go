package account

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AdminAccount is the single administrative principal. The three TOTP
// secret columns hold one authenticated-encryption envelope and are either
// all set (TOTPEnabled) or all empty.
type AdminAccount struct {
	ID                   uint            `gorm:"primaryKey" json:"-"`
	PublicID             string          `gorm:"uniqueIndex;size:36;not null" json:"id"`
	Username             string          `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash         string          `gorm:"not null" json:"-"`
	TOTPEnabled          bool            `gorm:"column:totp_enabled;not null;default:false" json:"totp_enabled"`
	TOTPSecretCiphertext []byte          `gorm:"column:totp_secret_ciphertext" json:"-"`
	TOTPSecretIV         []byte          `gorm:"column:totp_secret_iv" json:"-"`
	TOTPSecretTag        []byte          `gorm:"column:totp_secret_tag" json:"-"`
	LastTOTPStep         int64           `gorm:"column:last_totp_step;not null;default:0" json:"-"`
	RecoveryCodes        []RecoveryCode  `gorm:"foreignKey:AccountID" json:"-"`
	TrustedDevices       []TrustedDevice `gorm:"foreignKey:AccountID" json:"-"`
	LoginFailedCount     int             `gorm:"not null;default:0" json:"login_failed_count"`
	LockedUntil          *time.Time      `json:"locked_until,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (AdminAccount) TableName() string {
	return "admin_accounts"
}

func (a *AdminAccount) Validate() error {
	if a.Username == "" {
		return ErrUsernameRequired
	}
	if a.PasswordHash == "" {
		return ErrPasswordHashRequired
	}
	return validateEnvelope(a.TOTPEnabled, a.TOTPSecretCiphertext, a.TOTPSecretIV, a.TOTPSecretTag)
}

// CredentialFingerprint digests the password hash and second-factor
// envelope. Provisioning always writes a freshly salted hash, so any
// credential replacement changes it.
func (a *AdminAccount) CredentialFingerprint() string {
	h := sha256.New()
	h.Write([]byte(a.PasswordHash))
	if a.TOTPEnabled {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write(a.TOTPSecretCiphertext)
	h.Write(a.TOTPSecretIV)
	return hex.EncodeToString(h.Sum(nil))
}

// IsLocked reports the operator-view lock, which mirrors the throttle.
func (a *AdminAccount) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

type RecoveryCode struct {
	ID        uint       `gorm:"primaryKey"`
	AccountID uint       `gorm:"index;not null"`
	Position  int        `gorm:"not null"`
	Hash      string     `gorm:"not null"`
	Used      bool       `gorm:"not null;default:false;index"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time
}

func (RecoveryCode) TableName() string {
	return "admin_recovery_codes"
}

type TrustedDevice struct {
	ID          uint   `gorm:"primaryKey"`
	AccountID   uint   `gorm:"index;not null"`
	Fingerprint string `gorm:"uniqueIndex;size:64;not null"`
	Label       string `gorm:"size:255"`
	ExpiresAt   time.Time
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

func (TrustedDevice) TableName() string {
	return "admin_trusted_devices"
}

func (d *TrustedDevice) IsExpired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Credentials is the full credential and second-factor material written by
// provisioning. It replaces whatever the account held before.
type Credentials struct {
	PasswordHash   string
	TOTPEnabled    bool
	Ciphertext     []byte
	IV             []byte
	Tag            []byte
	RecoveryHashes []string
}

func (c *Credentials) Validate() error {
	if c.PasswordHash == "" {
		return ErrPasswordHashRequired
	}
	if err := validateEnvelope(c.TOTPEnabled, c.Ciphertext, c.IV, c.Tag); err != nil {
		return err
	}
	if !c.TOTPEnabled && len(c.RecoveryHashes) > 0 {
		return ErrRecoveryWithoutTOTP
	}
	return nil
}

func validateEnvelope(enabled bool, ciphertext, iv, tag []byte) error {
	present := 0
	for _, part := range [][]byte{ciphertext, iv, tag} {
		if len(part) > 0 {
			present++
		}
	}

	switch {
	case enabled && present == 3:
		return nil
	case !enabled && present == 0:
		return nil
	default:
		return ErrPartialEnvelope
	}
}

func Models() []any {
	return []any{&AdminAccount{}, &RecoveryCode{}, &TrustedDevice{}}
}
