package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the only writer of admin account state. Every multi-field
// change runs in a single transaction.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*AdminAccount, error)
	FindByID(ctx context.Context, id uint) (*AdminAccount, error)
	Create(ctx context.Context, account *AdminAccount) error
	ReplaceCredentials(ctx context.Context, id uint, creds Credentials) error

	// AdvanceTOTPStep moves last_totp_step from prev to next only if it still
	// equals prev and the stored envelope still has nonce iv. It reports false
	// when another request got there first or the secret was replaced.
	AdvanceTOTPStep(ctx context.Context, id uint, iv []byte, prev, next int64) (bool, error)

	UnusedRecoveryCodes(ctx context.Context, accountID uint) ([]RecoveryCode, error)
	// ConsumeRecoveryCode marks one unused code as used. It reports false when
	// the code was already used.
	ConsumeRecoveryCode(ctx context.Context, accountID, codeID uint) (bool, error)
	ReplaceRecoveryCodes(ctx context.Context, accountID uint, hashes []string) error

	RecordLoginFailure(ctx context.Context, username string, lockedUntil *time.Time) error
	ResetLoginFailures(ctx context.Context, id uint) error
	ClearLockout(ctx context.Context, username string) error

	AddTrustedDevice(ctx context.Context, device *TrustedDevice) error
	FindTrustedDevice(ctx context.Context, accountID uint, fingerprint string, now time.Time) (*TrustedDevice, error)
	RevokeTrustedDevices(ctx context.Context, accountID uint) error
}

type gormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db, now: time.Now}
}

func (r *gormRepository) FindByUsername(ctx context.Context, username string) (*AdminAccount, error) {
	var account AdminAccount
	err := r.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, repoErr("find_by_username", err)
	}
	return &account, nil
}

func (r *gormRepository) FindByID(ctx context.Context, id uint) (*AdminAccount, error) {
	var account AdminAccount
	err := r.db.WithContext(ctx).First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, repoErr("find_by_id", err)
	}
	return &account, nil
}

func (r *gormRepository) Create(ctx context.Context, account *AdminAccount) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if account.PublicID == "" {
		account.PublicID = uuid.NewString()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&AdminAccount{}).Where("username = ?", account.Username).Count(&count).Error; err != nil {
			return repoErr("create", err)
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		return repoErr("create", tx.Create(account).Error)
	})
}

func (r *gormRepository) ReplaceCredentials(ctx context.Context, id uint, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&AdminAccount{}).Where("id = ?", id).Updates(map[string]any{
			"password_hash":          creds.PasswordHash,
			"totp_enabled":           creds.TOTPEnabled,
			"totp_secret_ciphertext": creds.Ciphertext,
			"totp_secret_iv":         creds.IV,
			"totp_secret_tag":        creds.Tag,
			"last_totp_step":         0,
			"login_failed_count":     0,
			"locked_until":           nil,
		})
		if result.Error != nil {
			return repoErr("replace_credentials", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}

		if err := replaceCodes(tx, id, creds.RecoveryHashes); err != nil {
			return repoErr("replace_credentials", err)
		}
		if err := tx.Where("account_id = ?", id).Delete(&TrustedDevice{}).Error; err != nil {
			return repoErr("replace_credentials", err)
		}
		return nil
	})
}

func (r *gormRepository) AdvanceTOTPStep(ctx context.Context, id uint, iv []byte, prev, next int64) (bool, error) {
	if next <= prev || len(iv) == 0 {
		return false, nil
	}

	result := r.db.WithContext(ctx).Model(&AdminAccount{}).
		Where("id = ? AND totp_enabled = ? AND last_totp_step = ? AND totp_secret_iv = ?", id, true, prev, iv).
		Update("last_totp_step", next)
	if result.Error != nil {
		return false, repoErr("advance_totp_step", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormRepository) UnusedRecoveryCodes(ctx context.Context, accountID uint) ([]RecoveryCode, error) {
	var codes []RecoveryCode
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND used = ?", accountID, false).
		Order("position ASC").
		Find(&codes).Error
	if err != nil {
		return nil, repoErr("unused_recovery_codes", err)
	}
	return codes, nil
}

func (r *gormRepository) ConsumeRecoveryCode(ctx context.Context, accountID, codeID uint) (bool, error) {
	now := r.now()
	result := r.db.WithContext(ctx).Model(&RecoveryCode{}).
		Where("id = ? AND account_id = ? AND used = ?", codeID, accountID, false).
		Updates(map[string]any{"used": true, "used_at": &now})
	if result.Error != nil {
		return false, repoErr("consume_recovery_code", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormRepository) ReplaceRecoveryCodes(ctx context.Context, accountID uint, hashes []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account AdminAccount
		if err := tx.Select("id", "totp_enabled").First(&account, accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return repoErr("replace_recovery_codes", err)
		}
		if !account.TOTPEnabled && len(hashes) > 0 {
			return ErrRecoveryWithoutTOTP
		}
		return repoErr("replace_recovery_codes", replaceCodes(tx, accountID, hashes))
	})
}

func replaceCodes(tx *gorm.DB, accountID uint, hashes []string) error {
	if err := tx.Where("account_id = ?", accountID).Delete(&RecoveryCode{}).Error; err != nil {
		return err
	}
	if len(hashes) == 0 {
		return nil
	}

	codes := make([]RecoveryCode, len(hashes))
	for i, hash := range hashes {
		codes[i] = RecoveryCode{AccountID: accountID, Position: i, Hash: hash}
	}
	return tx.Create(&codes).Error
}

func (r *gormRepository) RecordLoginFailure(ctx context.Context, username string, lockedUntil *time.Time) error {
	updates := map[string]any{
		"login_failed_count": gorm.Expr("login_failed_count + ?", 1),
	}
	if lockedUntil != nil {
		updates["locked_until"] = lockedUntil
	}

	err := r.db.WithContext(ctx).Model(&AdminAccount{}).
		Where("username = ?", strings.TrimSpace(username)).
		Updates(updates).Error
	return repoErr("record_login_failure", err)
}

func (r *gormRepository) ResetLoginFailures(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&AdminAccount{}).
		Where("id = ?", id).
		Updates(map[string]any{"login_failed_count": 0, "locked_until": nil}).Error
	return repoErr("reset_login_failures", err)
}

func (r *gormRepository) ClearLockout(ctx context.Context, username string) error {
	result := r.db.WithContext(ctx).Model(&AdminAccount{}).
		Where("username = ?", strings.TrimSpace(username)).
		Updates(map[string]any{"login_failed_count": 0, "locked_until": nil})
	if result.Error != nil {
		return repoErr("clear_lockout", result.Error)
	}
	if result.RowsAffected == 0 {
		// MySQL counts changed rows, not matched ones.
		if _, err := r.FindByUsername(ctx, username); err != nil {
			return err
		}
	}
	return nil
}

func (r *gormRepository) AddTrustedDevice(ctx context.Context, device *TrustedDevice) error {
	device.ExpiresAt = device.ExpiresAt.UTC()
	return repoErr("add_trusted_device", r.db.WithContext(ctx).Create(device).Error)
}

// FindTrustedDevice returns nil without error when no unexpired device
// matches. A match has its last-used time refreshed.
func (r *gormRepository) FindTrustedDevice(ctx context.Context, accountID uint, fingerprint string, now time.Time) (*TrustedDevice, error) {
	now = now.UTC()
	var device TrustedDevice
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND fingerprint = ? AND expires_at > ?", accountID, fingerprint, now).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, repoErr("find_trusted_device", err)
	}

	if err := r.db.WithContext(ctx).Model(&device).Update("last_used_at", now).Error; err != nil {
		return nil, repoErr("find_trusted_device", err)
	}
	device.LastUsedAt = &now
	return &device, nil
}

func (r *gormRepository) RevokeTrustedDevices(ctx context.Context, accountID uint) error {
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&TrustedDevice{}).Error
	return repoErr("revoke_trusted_devices", err)
}
