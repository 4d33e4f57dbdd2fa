package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/tech-arch1tect/showcase/config"
)

const (
	AccountIDKey = "_account_id"
	IssuedAtKey  = "_issued_at"

	PendingAccountKey = "_pending_account_id"
	PendingSinceKey   = "_pending_since"
	PendingTrustKey   = "_pending_trust_device"
	PendingBindingKey = "_pending_binding"
)

var ErrInvalidAccount = errors.New("session requires a non-zero account id")

type Manager struct {
	*scs.SessionManager
	config config.SessionConfig
	now    func() time.Time
}

// Handle describes an issued session. Token is the fresh session id that
// the response cookie will carry.
type Handle struct {
	Token     string    `json:"-"`
	AccountID uint      `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Pending is a password-verified login awaiting its second factor. Binding
// identifies the credentials the password was checked against.
type Pending struct {
	AccountID   uint
	Binding     string
	TrustDevice bool
	Since       time.Time
}

func NewManager(cfg config.SessionConfig, store scs.Store) *Manager {
	sm := scs.New()
	sm.Store = store
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	if cfg.IdleTimeout > 0 {
		sm.IdleTimeout = cfg.IdleTimeout
	}
	sm.Cookie.Name = cfg.Name
	sm.Cookie.Path = cfg.Path
	sm.Cookie.Domain = cfg.Domain
	sm.Cookie.Secure = cfg.Secure
	sm.Cookie.HttpOnly = cfg.HttpOnly
	sm.Cookie.SameSite = sameSite(cfg.SameSite)

	return &Manager{
		SessionManager: sm,
		config:         cfg,
		now:            time.Now,
	}
}

func (m *Manager) Config() config.SessionConfig {
	return m.config
}

// Issue binds an authenticated account to the request's session. The token is
// renewed first so an identifier planted before login never becomes
// authenticated.
func (m *Manager) Issue(ctx context.Context, accountID uint) (*Handle, error) {
	if accountID == 0 {
		return nil, ErrInvalidAccount
	}

	if err := m.RenewToken(ctx); err != nil {
		return nil, fmt.Errorf("failed to renew session token: %w", err)
	}

	issuedAt := m.now().UTC().Truncate(time.Second)
	m.clearPending(ctx)
	m.Put(ctx, AccountIDKey, accountID)
	m.Put(ctx, IssuedAtKey, issuedAt.Unix())

	return &Handle{
		Token:     m.Token(ctx),
		AccountID: accountID,
		IssuedAt:  issuedAt,
	}, nil
}

// Current returns the handle of the authenticated session, if any.
func (m *Manager) Current(ctx context.Context) (*Handle, bool) {
	accountID, ok := m.Get(ctx, AccountIDKey).(uint)
	if !ok || accountID == 0 {
		return nil, false
	}
	return &Handle{
		Token:     m.Token(ctx),
		AccountID: accountID,
		IssuedAt:  time.Unix(m.GetInt64(ctx, IssuedAtKey), 0).UTC(),
	}, true
}

// SetPending records a password-verified account that still owes a second
// factor. The token is renewed here as well since the session gained state.
func (m *Manager) SetPending(ctx context.Context, accountID uint, binding string, trustDevice bool) error {
	if accountID == 0 {
		return ErrInvalidAccount
	}
	if err := m.RenewToken(ctx); err != nil {
		return fmt.Errorf("failed to renew session token: %w", err)
	}
	m.Put(ctx, PendingAccountKey, accountID)
	m.Put(ctx, PendingSinceKey, m.now().UTC().Unix())
	m.Put(ctx, PendingBindingKey, binding)
	m.Put(ctx, PendingTrustKey, trustDevice)
	return nil
}

// GetPending returns the pending second-factor state. Entries older than the
// configured TTL are discarded.
func (m *Manager) GetPending(ctx context.Context) (*Pending, bool) {
	accountID, ok := m.Get(ctx, PendingAccountKey).(uint)
	if !ok || accountID == 0 {
		return nil, false
	}

	since := time.Unix(m.GetInt64(ctx, PendingSinceKey), 0).UTC()
	if ttl := m.config.PendingTTL; ttl > 0 && !m.now().Before(since.Add(ttl)) {
		m.clearPending(ctx)
		return nil, false
	}

	return &Pending{
		AccountID:   accountID,
		Binding:     m.GetString(ctx, PendingBindingKey),
		TrustDevice: m.GetBool(ctx, PendingTrustKey),
		Since:       since,
	}, true
}

func (m *Manager) ClearPending(ctx context.Context) {
	m.clearPending(ctx)
}

func (m *Manager) clearPending(ctx context.Context) {
	m.Remove(ctx, PendingAccountKey)
	m.Remove(ctx, PendingSinceKey)
	m.Remove(ctx, PendingTrustKey)
	m.Remove(ctx, PendingBindingKey)
}

// Logout destroys the session data and expires the cookie.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.Destroy(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
