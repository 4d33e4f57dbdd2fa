package totp

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/vault"
	"github.com/tech-arch1tect/showcase/testutils"
)

type serviceFixture struct {
	service  *Service
	accounts account.Repository
	account  *account.AdminAccount
	vault    *vault.Vault
	clock    *testutils.Clock
}

func setupService(t *testing.T, logger *logging.Service) *serviceFixture {
	t.Helper()

	key, err := hex.DecodeString(testutils.TestEncryptionKey)
	require.NoError(t, err)
	v, err := vault.New(key, vault.CipherXChaCha20Poly1305)
	require.NoError(t, err)

	env, err := v.Encrypt(testutils.TestSecret)
	require.NoError(t, err)

	db := testutils.SetupTestDB(t, account.Models()...)
	repo := account.NewRepository(db)
	acct := &account.AdminAccount{
		Username:             "admin",
		PasswordHash:         "hash",
		TOTPEnabled:          true,
		TOTPSecretCiphertext: env.Ciphertext,
		TOTPSecretIV:         env.IV,
		TOTPSecretTag:        env.Tag,
	}
	require.NoError(t, repo.Create(context.Background(), acct))

	clock := testutils.NewClock(fixedNow)
	cfg := config.TOTPConfig{Issuer: "Test Showcase", Period: 30, Digits: 6, Skew: 1}
	verifier := NewVerifier(cfg)
	verifier.now = clock.Now

	return &serviceFixture{
		service:  NewService(cfg, verifier, v, repo, logger),
		accounts: repo,
		account:  acct,
		vault:    v,
		clock:    clock,
	}
}

func (f *serviceFixture) currentCode(t *testing.T) string {
	t.Helper()
	code, err := f.service.Verifier().Code(testutils.TestSecret, f.service.Verifier().CurrentStep())
	require.NoError(t, err)
	return code
}

// reprovisioningRepository replaces the account's credentials the first
// time a step advance is attempted.
type reprovisioningRepository struct {
	account.Repository
	creds account.Credentials
	once  sync.Once
	err   error
}

func (r *reprovisioningRepository) AdvanceTOTPStep(ctx context.Context, id uint, iv []byte, prev, next int64) (bool, error) {
	r.once.Do(func() {
		r.err = r.Repository.ReplaceCredentials(ctx, id, r.creds)
	})
	if r.err != nil {
		return false, r.err
	}
	return r.Repository.AdvanceTOTPStep(ctx, id, iv, prev, next)
}

func (f *serviceFixture) reload(t *testing.T) *account.AdminAccount {
	t.Helper()
	acct, err := f.accounts.FindByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	return acct
}

func TestService_VerifyAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts once and persists the step", func(t *testing.T) {
		f := setupService(t, nil)
		code := f.currentCode(t)

		ok, err := f.service.VerifyAccount(ctx, f.reload(t), code)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, f.service.Verifier().CurrentStep(), f.reload(t).LastTOTPStep)

		ok, err = f.service.VerifyAccount(ctx, f.reload(t), code)
		require.NoError(t, err)
		assert.False(t, ok, "replayed code must be rejected")
	})

	t.Run("stale account snapshot cannot replay", func(t *testing.T) {
		f := setupService(t, nil)
		code := f.currentCode(t)
		snapshot := f.reload(t)

		ok, err := f.service.VerifyAccount(ctx, f.reload(t), code)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = f.service.VerifyAccount(ctx, snapshot, code)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent submissions of one code succeed once", func(t *testing.T) {
		f := setupService(t, nil)
		code := f.currentCode(t)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				acct, err := f.accounts.FindByID(ctx, f.account.ID)
				if !assert.NoError(t, err) {
					return
				}
				ok, err := f.service.VerifyAccount(ctx, acct, code)
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("later step still accepted after an earlier one", func(t *testing.T) {
		f := setupService(t, nil)
		step := f.service.Verifier().CurrentStep()
		earlier, err := f.service.Verifier().Code(testutils.TestSecret, step-1)
		require.NoError(t, err)
		later, err := f.service.Verifier().Code(testutils.TestSecret, step+1)
		require.NoError(t, err)

		ok, err := f.service.VerifyAccount(ctx, f.reload(t), earlier)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = f.service.VerifyAccount(ctx, f.reload(t), later)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.service.VerifyAccount(ctx, f.reload(t), earlier)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("replaced secret is not accepted mid verification", func(t *testing.T) {
		verifier := func(f *serviceFixture) *Verifier { return f.service.Verifier() }

		tests := []struct {
			name    string
			prepare func(t *testing.T, f *serviceFixture)
		}{
			{
				name:    "before any code was used",
				prepare: func(t *testing.T, f *serviceFixture) {},
			},
			{
				name: "after an earlier code was used",
				prepare: func(t *testing.T, f *serviceFixture) {
					earlier, err := verifier(f).Code(testutils.TestSecret, verifier(f).CurrentStep()-1)
					require.NoError(t, err)
					ok, err := f.service.VerifyAccount(ctx, f.reload(t), earlier)
					require.NoError(t, err)
					require.True(t, ok)
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := setupService(t, nil)
				tt.prepare(t, f)
				snapshot := f.reload(t)

				replacement, err := vault.GenerateSecret()
				require.NoError(t, err)
				env, err := f.vault.Encrypt(replacement)
				require.NoError(t, err)
				repo := &reprovisioningRepository{
					Repository: f.accounts,
					creds: account.Credentials{
						PasswordHash: "rotated-hash",
						TOTPEnabled:  true,
						Ciphertext:   env.Ciphertext,
						IV:           env.IV,
						Tag:          env.Tag,
					},
				}
				svc := NewService(config.TOTPConfig{}, verifier(f), f.vault, repo, nil)

				ok, err := svc.VerifyAccount(ctx, snapshot, f.currentCode(t))

				require.NoError(t, err)
				assert.False(t, ok, "code from the replaced secret must be rejected")
				assert.Zero(t, f.reload(t).LastTOTPStep)

				fresh, err := verifier(f).Code(replacement, verifier(f).CurrentStep())
				require.NoError(t, err)
				ok, err = svc.VerifyAccount(ctx, f.reload(t), fresh)
				require.NoError(t, err)
				assert.True(t, ok)
			})
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		f := setupService(t, nil)

		ok, err := f.service.VerifyAccount(ctx, f.reload(t), "000000")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, f.reload(t).LastTOTPStep)
	})

	t.Run("tampered envelope is an integrity failure", func(t *testing.T) {
		logger, logs := testutils.NewObservedLogger()
		f := setupService(t, logger)
		acct := f.reload(t)
		acct.TOTPSecretTag[0] ^= 0xff

		ok, err := f.service.VerifyAccount(ctx, acct, f.currentCode(t))
		assert.False(t, ok)
		assert.ErrorIs(t, err, vault.ErrIntegrity)

		require.Equal(t, 1, logs.FilterMessage("TOTP secret failed integrity check").Len())
		testutils.AssertNotLogged(t, logs, testutils.TestSecret)
	})

	t.Run("account without TOTP", func(t *testing.T) {
		f := setupService(t, nil)

		_, err := f.service.VerifyAccount(ctx, &account.AdminAccount{ID: f.account.ID}, "123456")
		assert.ErrorIs(t, err, ErrTOTPNotEnabled)
	})
}

func TestService_ProvisioningKey(t *testing.T) {
	f := setupService(t, nil)

	key, err := f.service.ProvisioningKey("admin", testutils.TestSecret)
	require.NoError(t, err)

	assert.Equal(t, testutils.TestSecret, key.Secret())
	assert.Equal(t, "Test Showcase", key.Issuer())
	assert.Equal(t, "admin", key.AccountName())
	assert.True(t, strings.HasPrefix(key.URL(), "otpauth://totp/"))
	assert.Contains(t, key.URL(), "secret="+testutils.TestSecret)

	img, err := key.Image(128, 128)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	_, err = f.service.ProvisioningKey("admin", "not-base32!")
	assert.ErrorIs(t, err, vault.ErrInvalidSecret)
}
