package adminauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/auth"
	"github.com/tech-arch1tect/showcase/services/device"
	"github.com/tech-arch1tect/showcase/services/login"
	"github.com/tech-arch1tect/showcase/services/recovery"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/services/totp"
	"github.com/tech-arch1tect/showcase/services/vault"
	"github.com/tech-arch1tect/showcase/session"
	"github.com/tech-arch1tect/showcase/testutils"
	"go.uber.org/zap/zaptest/observer"
)

type testServer struct {
	echo   *echo.Echo
	totp   *totp.Service
	cfg    *config.Config
	logs   *observer.ObservedLogs
	codes  []string
	editor uint
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	ctx := context.Background()
	cfg := testutils.GetTestConfig()
	for _, m := range mutate {
		m(cfg)
	}
	logger, logs := testutils.NewObservedLogger()

	db := testutils.SetupTestDB(t, account.Models()...)
	repo := account.NewRepository(db)

	authSvc := auth.NewService(&cfg.Auth, repo, logger)
	hash, err := authSvc.HashPassword(testutils.TestPasswords.Valid)
	require.NoError(t, err)

	key, err := cfg.TOTP.Key()
	require.NoError(t, err)
	v, err := vault.New(key, cfg.TOTP.Cipher)
	require.NoError(t, err)
	env, err := v.Encrypt(testutils.TestSecret)
	require.NoError(t, err)

	manager := recovery.NewManager(cfg.Recovery.BcryptCost)
	bundle, err := manager.Generate(2)
	require.NoError(t, err)
	codes := make([]account.RecoveryCode, len(bundle.Hashed))
	for i, h := range bundle.Hashed {
		codes[i] = account.RecoveryCode{Position: i, Hash: h}
	}

	require.NoError(t, repo.Create(ctx, &account.AdminAccount{
		Username:             "admin",
		PasswordHash:         hash,
		TOTPEnabled:          true,
		TOTPSecretCiphertext: env.Ciphertext,
		TOTPSecretIV:         env.IV,
		TOTPSecretTag:        env.Tag,
		RecoveryCodes:        codes,
	}))
	editor := &account.AdminAccount{Username: "editor", PasswordHash: hash}
	require.NoError(t, repo.Create(ctx, editor))

	store := throttle.NewMemoryStore(time.Minute, 20*time.Minute)
	t.Cleanup(store.Close)
	throttleSvc := throttle.NewService(cfg.Throttle, store, logger)

	totpSvc := totp.NewService(cfg.TOTP, totp.NewVerifier(cfg.TOTP), v, repo, logger)
	sessions := session.NewManager(cfg.Session, session.NewMemoryStore())
	devices := device.NewService(cfg.TrustedDevice, repo, logger)

	loginSvc := login.NewService(login.Dependencies{
		Auth:     authSvc,
		TOTP:     totpSvc,
		Recovery: recovery.NewService(manager, repo, logger),
		Throttle: throttleSvc,
		Devices:  devices,
		Sessions: sessions,
		Accounts: repo,
		Logger:   logger,
	})

	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	NewHandler(loginSvc, throttleSvc, sessions, devices, &cfg.CSRF, logger).Register(e)

	return &testServer{echo: e, totp: totpSvc, cfg: cfg, logs: logs, codes: bundle.Plain, editor: editor.ID}
}

func (s *testServer) code(t *testing.T) string {
	t.Helper()
	v := s.totp.Verifier()
	code, err := v.Code(testutils.TestSecret, v.CurrentStep())
	require.NoError(t, err)
	return code
}

// browser keeps cookies between requests and sends them from one address.
type browser struct {
	server  *testServer
	addr    string
	cookies map[string]string
}

func (s *testServer) browser(addr string) *browser {
	return &browser{server: s, addr: addr, cookies: map[string]string{}}
}

func (b *browser) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *strings.Reader
	switch v := body.(type) {
	case nil:
		payload = strings.NewReader("")
	case string:
		payload = strings.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		payload = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	req.RemoteAddr = b.addr + ":51234"
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	rec := httptest.NewRecorder()
	b.server.echo.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c.Value
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestLogin_PasswordOnly(t *testing.T) {
	s := newTestServer(t)
	b := s.browser("192.0.2.10")

	before := b.do(t, http.MethodGet, "/admin/session", nil)
	require.Equal(t, http.StatusOK, before.Code)
	assert.False(t, decode[SessionResponse](t, before).Authenticated)

	rec := b.do(t, http.MethodPost, "/admin/login", LoginRequest{Username: "editor", Password: testutils.TestPasswords.Valid})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionResponse](t, rec)
	assert.True(t, resp.Authenticated)
	assert.Equal(t, s.editor, resp.AccountID)
	assert.Equal(t, string(login.MethodPassword), resp.Method)
	assert.NotEmpty(t, b.cookies["test_session"])

	after := decode[SessionResponse](t, b.do(t, http.MethodGet, "/admin/session", nil))
	assert.True(t, after.Authenticated)
	assert.Equal(t, s.editor, after.AccountID)

	testutils.AssertNotLogged(t, s.logs, testutils.TestPasswords.Valid)
}

func TestLogin_RotatesPlantedSession(t *testing.T) {
	s := newTestServer(t)
	attacker := s.browser("192.0.2.10")
	require.Equal(t, http.StatusAccepted, attacker.do(t, http.MethodPost, "/admin/login",
		LoginRequest{Username: "admin", Password: testutils.TestPasswords.Valid}).Code)
	planted := attacker.cookies["test_session"]
	require.NotEmpty(t, planted)

	victim := s.browser("192.0.2.11")
	victim.cookies["test_session"] = planted
	rec := victim.do(t, http.MethodPost, "/admin/login", LoginRequest{Username: "editor", Password: testutils.TestPasswords.Valid})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, planted, victim.cookies["test_session"])

	resp := decode[SessionResponse](t, attacker.do(t, http.MethodGet, "/admin/session", nil))
	assert.False(t, resp.Authenticated)
	assert.False(t, resp.SecondFactorPending)
}

func TestLogin_TwoStep(t *testing.T) {
	s := newTestServer(t)
	b := s.browser("192.0.2.10")

	rec := b.do(t, http.MethodPost, "/admin/login", LoginRequest{Username: "admin", Password: testutils.TestPasswords.Valid})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, decode[PendingResponse](t, rec).SecondFactorRequired)

	pending := decode[SessionResponse](t, b.do(t, http.MethodGet, "/admin/session", nil))
	assert.False(t, pending.Authenticated)
	assert.True(t, pending.SecondFactorPending)

	t.Run("wrong code", func(t *testing.T) {
		rec := b.do(t, http.MethodPost, "/admin/login/verify", VerifyRequest{Code: "AAAA-BBBB-CCCC"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, codeSecondFactorInvalid, decode[ErrorResponse](t, rec).Code)
	})

	t.Run("correct code", func(t *testing.T) {
		rec := b.do(t, http.MethodPost, "/admin/login/verify", VerifyRequest{Code: s.code(t)})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[SessionResponse](t, rec)
		assert.True(t, resp.Authenticated)
		assert.Equal(t, string(login.MethodTOTP), resp.Method)
	})

	testutils.AssertNotLogged(t, s.logs, testutils.TestPasswords.Valid, testutils.TestSecret)
}

func TestLogin_VerifyWithoutPending(t *testing.T) {
	s := newTestServer(t)
	b := s.browser("192.0.2.10")

	rec := b.do(t, http.MethodPost, "/admin/login/verify", VerifyRequest{Code: s.code(t)})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeInvalidCredentials, decode[ErrorResponse](t, rec).Code)
}

func TestLogin_RecoveryCode(t *testing.T) {
	s := newTestServer(t)
	b := s.browser("192.0.2.10")

	rec := b.do(t, http.MethodPost, "/admin/login", LoginRequest{
		Username: "admin",
		Password: testutils.TestPasswords.Valid,
		Code:     s.codes[0],
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(login.MethodRecoveryCode), decode[SessionResponse](t, rec).Method)

	again := s.browser("192.0.2.11").do(t, http.MethodPost, "/admin/login", LoginRequest{
		Username: "admin",
		Password: testutils.TestPasswords.Valid,
		Code:     s.codes[0],
	})
	assert.Equal(t, http.StatusUnauthorized, again.Code)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)

	wrongPassword := s.browser("192.0.2.10").do(t, http.MethodPost, "/admin/login",
		LoginRequest{Username: "admin", Password: "Wrong-Password-2024"})
	unknownUser := s.browser("192.0.2.11").do(t, http.MethodPost, "/admin/login",
		LoginRequest{Username: "nobody", Password: "Wrong-Password-2024"})

	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestLogin_Lockout(t *testing.T) {
	s := newTestServer(t)
	attacker := s.browser("192.0.2.10")

	for i := 0; i < 5; i++ {
		rec := attacker.do(t, http.MethodPost, "/admin/login", LoginRequest{Username: "admin", Password: "Wrong-Password-2024"})
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	t.Run("locked source is refused before credentials are checked", func(t *testing.T) {
		rec := attacker.do(t, http.MethodPost, "/admin/login", LoginRequest{Username: "editor", Password: testutils.TestPasswords.Valid})

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, codeLocked, decode[ErrorResponse](t, rec).Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("verify is gated too", func(t *testing.T) {
		rec := attacker.do(t, http.MethodPost, "/admin/login/verify", VerifyRequest{Code: "123456"})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("other source is unaffected", func(t *testing.T) {
		rec := s.browser("192.0.2.20").do(t, http.MethodPost, "/admin/login",
			LoginRequest{Username: "editor", Password: testutils.TestPasswords.Valid})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLogin_TrustedDevice(t *testing.T) {
	s := newTestServer(t)
	b := s.browser("192.0.2.10")

	rec := b.do(t, http.MethodPost, "/admin/login", LoginRequest{
		Username:    "admin",
		Password:    testutils.TestPasswords.Valid,
		Code:        s.code(t),
		TrustDevice: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, b.cookies["test_trusted_device"])

	require.Equal(t, http.StatusNoContent, b.do(t, http.MethodPost, "/admin/logout", nil).Code)

	again := b.do(t, http.MethodPost, "/admin/login", LoginRequest{Username: "admin", Password: testutils.TestPasswords.Valid})
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, string(login.MethodTrustedDevice), decode[SessionResponse](t, again).Method)
}

func TestLogin_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"username":`},
		{"missing username", LoginRequest{Password: testutils.TestPasswords.Valid}},
		{"oversized password", LoginRequest{Username: "admin", Password: strings.Repeat("x", 2048)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.browser("192.0.2.10").do(t, http.MethodPost, "/admin/login", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, codeValidation, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	b := s.browser("192.0.2.10")

	assert.Equal(t, http.StatusUnauthorized, b.do(t, http.MethodPost, "/admin/logout", nil).Code)

	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/admin/login",
		LoginRequest{Username: "editor", Password: testutils.TestPasswords.Valid}).Code)
	assert.Equal(t, http.StatusNoContent, b.do(t, http.MethodPost, "/admin/logout", nil).Code)

	resp := decode[SessionResponse](t, b.do(t, http.MethodGet, "/admin/session", nil))
	assert.False(t, resp.Authenticated)
}

func TestCSRF(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.CSRF = config.CSRFConfig{
			Enabled:        true,
			TokenLength:    32,
			TokenLookup:    "header:X-CSRF-Token",
			ContextKey:     "csrf",
			CookieName:     "_csrf",
			CookiePath:     "/",
			CookieMaxAge:   3600,
			CookieSameSite: "strict",
		}
	})
	b := s.browser("192.0.2.10")

	rec := b.do(t, http.MethodPost, "/admin/login", LoginRequest{Username: "editor", Password: testutils.TestPasswords.Valid})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	token := decode[SessionResponse](t, b.do(t, http.MethodGet, "/admin/session", nil)).CSRFToken
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodPost, "/admin/login",
		strings.NewReader(`{"username":"editor","password":"`+testutils.TestPasswords.Valid+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-CSRF-Token", token)
	req.RemoteAddr = "192.0.2.10:51234"
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	ok := httptest.NewRecorder()
	s.echo.ServeHTTP(ok, req)

	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestOpenAPIRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.browser("192.0.2.10").do(t, http.MethodGet, "/admin/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	for _, p := range []string{"/admin/login", "/admin/login/verify", "/admin/logout", "/admin/session"} {
		assert.Contains(t, paths, p)
	}

	yaml := s.browser("192.0.2.10").do(t, http.MethodGet, "/admin/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, yaml.Code)
	assert.Contains(t, yaml.Body.String(), "openapi:")
}
