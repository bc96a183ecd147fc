package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"identity-service/internal/auth"
	"identity-service/internal/domain"
	"identity-service/internal/metrics"
	"identity-service/internal/repository/sqlstore"
	"identity-service/internal/service"
	"identity-service/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type capturedSecret struct {
	mu     sync.Mutex
	secret string
}

func (c *capturedSecret) SendResetToken(_ context.Context, _ *domain.Account, secret string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secret = secret
	return nil
}

func (c *capturedSecret) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secret
}

type memAvatars struct{}

func (memAvatars) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.example.com/" + key, nil
}

func (memAvatars) Delete(context.Context, string) error { return nil }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	router  *gin.Engine
	codec   *auth.TokenCodec
	sender  *capturedSecret
	metrics *metrics.Metrics
	logs    *logtest.Hook
}

func newTestServer(t *testing.T, avatars storage.AvatarStore) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.DialectSQLite))
	store := sqlstore.New(db, sqlstore.DialectSQLite)

	codec, err := auth.NewTokenCodec("http-test-secret")
	require.NoError(t, err)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	m := metrics.New()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	sender := &capturedSecret{}

	opts := []service.Option{service.WithEventRecorder(m), service.WithLogger(logger)}
	h := NewHandler(Deps{
		Auth:           service.NewAuthService(store, hasher, codec, opts...),
		Reset:          service.NewResetService(store, hasher, sender, time.Hour, opts...),
		Users:          service.NewUserService(store, avatars, "avatars", opts...),
		Tokens:         codec,
		Health:         store,
		Metrics:        m,
		Logger:         logger,
		MaxAvatarBytes: 1 << 10,
	})

	router := gin.New()
	h.RegisterRoutes(router)
	return &testServer{router: router, codec: codec, sender: sender, metrics: m, logs: hook}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, want *domain.Error) {
	t.Helper()
	assert.Equal(t, want.Status, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, want.Code, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
}

func (s *testServer) registerUser(t *testing.T, email, password, username string) AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", registerRequest{Email: email, Password: password, Username: username}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AuthResponse](t, rec)
}

func TestAliceScenario(t *testing.T) {
	s := newTestServer(t, memAvatars{})

	alice := s.registerUser(t, "alice@example.com", "password123", "alice")
	assert.NotEmpty(t, alice.User.ID)
	assert.Equal(t, "alice@example.com", alice.User.Email)
	assert.NotEmpty(t, alice.AccessToken)
	assert.NotEmpty(t, alice.RefreshToken)

	claims, err := s.codec.VerifyKind(alice.AccessToken, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, alice.User.ID, claims.UserID())
	assert.Equal(t, "alice", claims.Username)

	rec := s.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "alice@example.com", Password: "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[AuthResponse](t, rec)
	assert.Equal(t, alice.User.ID, login.User.ID)
	assert.NotEmpty(t, login.AccessToken)

	rec = s.do(t, http.MethodPut, "/users/"+alice.User.ID+"/profile",
		map[string]any{"level": 5, "experience": 1000}, login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[ProfileResponse](t, rec)
	assert.Equal(t, 5, profile.Level)
	assert.EqualValues(t, 1000, profile.Experience)
	assert.Zero(t, profile.Wins)
	assert.Zero(t, profile.Losses)
	assert.Empty(t, profile.AvatarURL)

	bob := s.registerUser(t, "bob@example.com", "password456", "bob")
	rec = s.do(t, http.MethodGet, "/users/"+alice.User.ID, nil, bob.AccessToken)
	assertError(t, rec, domain.ErrUnauthorized)

	rec = s.do(t, http.MethodGet, "/users/does-not-exist", nil, bob.AccessToken)
	assertError(t, rec, domain.ErrUnauthorized)
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerUser(t, "alice@example.com", "password123", "alice")

	tests := []struct {
		name string
		body any
		want *domain.Error
	}{
		{name: "invalid email", body: registerRequest{Email: "nope", Password: "password123", Username: "x"}, want: domain.ErrInvalidEmail},
		{name: "weak password", body: registerRequest{Email: "x@example.com", Password: "short", Username: "x"}, want: domain.ErrWeakPassword},
		{name: "80 byte password", body: registerRequest{Email: "x@example.com", Password: strings.Repeat("p", 80), Username: "x"}, want: domain.ErrWeakPassword},
		{name: "email taken", body: registerRequest{Email: "alice@example.com", Password: "password123", Username: "other"}, want: domain.ErrEmailTaken},
		{name: "username taken", body: registerRequest{Email: "other@example.com", Password: "password123", Username: "alice"}, want: domain.ErrUsernameTaken},
		{name: "not json", body: "just a string", want: domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/auth/register", tt.body, "")
			assertError(t, rec, tt.want)
		})
	}
}

func TestLogin_SameResponseForUnknownEmailAndWrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerUser(t, "alice@example.com", "password123", "alice")

	wrong := s.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "alice@example.com", Password: "wrongpass1"}, "")
	unknown := s.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "ghost@example.com", Password: "wrongpass1"}, "")

	assertError(t, wrong, domain.ErrInvalidCredentials)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestRefreshAndValidate(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.registerUser(t, "alice@example.com", "password123", "alice")

	rec := s.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: alice.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decode[map[string]string](t, rec)
	require.NotEmpty(t, refreshed["access_token"])

	rec = s.do(t, http.MethodPost, "/auth/validate", validateRequest{Token: refreshed["access_token"]}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	validated := decode[ValidateResponse](t, rec)
	assert.True(t, validated.Valid)
	assert.Equal(t, alice.User.ID, validated.Claims.UserID)
	assert.Equal(t, "access", validated.Claims.Type)

	rec = s.do(t, http.MethodPost, "/auth/validate", nil, alice.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code, "bearer header is accepted")

	rec = s.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: alice.RefreshToken + "x"}, "")
	assertError(t, rec, domain.ErrInvalidToken)

	rec = s.do(t, http.MethodPost, "/auth/refresh", map[string]string{}, "")
	assertError(t, rec, domain.ErrInvalidToken)

	rec = s.do(t, http.MethodPost, "/auth/refresh", "not an object", "")
	assertError(t, rec, domain.ErrInvalidToken)

	rec = s.do(t, http.MethodPost, "/auth/validate", validateRequest{Token: alice.RefreshToken}, "")
	assertError(t, rec, domain.ErrInvalidToken)

	rec = s.do(t, http.MethodPost, "/auth/validate", nil, "")
	assertError(t, rec, domain.ErrInvalidToken)
}

func TestValidate_ExpiredToken(t *testing.T) {
	s := newTestServer(t, nil)
	past := time.Now().Add(-48 * time.Hour)
	old, err := auth.NewTokenCodec("http-test-secret", auth.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	token, err := old.Issue(auth.Identity{UserID: "u1", Email: "u1@example.com", Username: "u1"}, auth.KindAccess, time.Hour)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/auth/validate", validateRequest{Token: token}, "")
	assertError(t, rec, domain.ErrExpiredToken)

	rec = s.do(t, http.MethodGet, "/users/u1", nil, token)
	assertError(t, rec, domain.ErrExpiredToken)
}

func TestProtectedRoutes_RequireAccessToken(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.registerUser(t, "alice@example.com", "password123", "alice")
	path := "/users/" + alice.User.ID

	rec := s.do(t, http.MethodGet, path, nil, "")
	assertError(t, rec, domain.ErrInvalidToken)

	rec = s.do(t, http.MethodGet, path, nil, "garbage")
	assertError(t, rec, domain.ErrInvalidToken)

	rec = s.do(t, http.MethodGet, path, nil, alice.RefreshToken)
	assertError(t, rec, domain.ErrInvalidToken)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Basic "+alice.AccessToken)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assertError(t, rec, domain.ErrInvalidToken)

	rec = s.do(t, http.MethodGet, path, nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[UserProfileResponse](t, rec)
	assert.Equal(t, alice.User.ID, got.User.ID)
	assert.Equal(t, domain.DefaultLevel, got.Profile.Level)
	assert.Equal(t, domain.DefaultLanguage, got.Preferences.Language)
	assert.Equal(t, domain.DefaultTheme, got.Preferences.Theme)
	assert.True(t, got.Preferences.Notifications)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestUserDeletedAfterTokenIssued(t *testing.T) {
	s := newTestServer(t, nil)
	token, err := s.codec.Issue(auth.Identity{UserID: "ghost", Email: "ghost@example.com", Username: "ghost"}, auth.KindAccess, time.Hour)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/users/ghost", nil, token)
	assertError(t, rec, domain.ErrUserNotFound)
}

func TestUpdatePreferences(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.registerUser(t, "alice@example.com", "password123", "alice")

	rec := s.do(t, http.MethodPut, "/users/"+alice.User.ID+"/preferences",
		map[string]any{"notifications": false, "theme": "dark"}, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prefs := decode[PreferencesResponse](t, rec)
	assert.False(t, prefs.Notifications)
	assert.Equal(t, "dark", prefs.Theme)
	assert.Equal(t, "en", prefs.Language)

	rec = s.do(t, http.MethodPut, "/users/"+alice.User.ID+"/preferences",
		map[string]any{"language": ""}, alice.AccessToken)
	assertError(t, rec, domain.ErrInvalidRequest)

	rec = s.do(t, http.MethodPut, "/users/"+alice.User.ID+"/profile",
		map[string]any{"wins": -1}, alice.AccessToken)
	assertError(t, rec, domain.ErrInvalidRequest)

	rec = s.do(t, http.MethodPut, "/users/"+alice.User.ID+"/profile",
		map[string]any{"wins": 3000000000}, alice.AccessToken)
	assertError(t, rec, domain.ErrInvalidRequest)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t, nil)
	s.registerUser(t, "alice@example.com", "password123", "alice")

	known := s.do(t, http.MethodPost, "/auth/request-password-reset", requestResetRequest{Email: "alice@example.com"}, "")
	require.Equal(t, http.StatusOK, known.Code)
	unknown := s.do(t, http.MethodPost, "/auth/request-password-reset", requestResetRequest{Email: "ghost@example.com"}, "")
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())
	assert.Equal(t, service.ResetRequestedMessage, decode[MessageResponse](t, known).Message)

	secret := s.sender.get()
	require.NotEmpty(t, secret)

	rec := s.do(t, http.MethodPost, "/auth/reset-password", resetPasswordRequest{Token: secret, NewPassword: strings.Repeat("p", 80)}, "")
	assertError(t, rec, domain.ErrWeakPassword)

	rec = s.do(t, http.MethodPost, "/auth/reset-password", resetPasswordRequest{Token: secret, NewPassword: "brandnew99"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.ResetCompletedMessage, decode[MessageResponse](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/auth/reset-password", resetPasswordRequest{Token: secret, NewPassword: "brandnew99"}, "")
	assertError(t, rec, domain.ErrInvalidResetToken)

	rec = s.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "alice@example.com", Password: "brandnew99"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func avatarRequest(t *testing.T, path, token string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(avatarField, "avatar.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadAvatar(t *testing.T) {
	s := newTestServer(t, memAvatars{})
	alice := s.registerUser(t, "alice@example.com", "password123", "alice")
	path := "/users/" + alice.User.ID + "/avatar"

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, avatarRequest(t, path, alice.AccessToken, pngHeader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[ProfileResponse](t, rec)
	assert.True(t, strings.HasPrefix(profile.AvatarURL, "https://cdn.example.com/avatars/"+alice.User.ID+"/"))
	assert.True(t, strings.HasSuffix(profile.AvatarURL, ".png"))

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, avatarRequest(t, path, alice.AccessToken, []byte("plain text, not an image")))
	assertError(t, rec, domain.ErrInvalidRequest)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, avatarRequest(t, path, alice.AccessToken, append(pngHeader, bytes.Repeat([]byte{0}, 2<<10)...)))
	assertError(t, rec, domain.ErrInvalidRequest)
}

func TestUploadAvatar_StorageDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.registerUser(t, "alice@example.com", "password123", "alice")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, avatarRequest(t, "/users/"+alice.User.ID+"/avatar", alice.AccessToken, pngHeader))
	assertError(t, rec, domain.ErrStorageUnavailable)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h := NewHandler(Deps{Health: failingPinger{}})
	router := gin.New()
	h.RegisterRoutes(router)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware_RequestIDCORSAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = s.do(t, http.MethodGet, "/health", nil, "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = s.do(t, http.MethodOptions, "/auth/login", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	s.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "ghost@example.com", Password: "password123"}, "")

	rec = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	exposition := rec.Body.String()
	assert.Contains(t, exposition, `identity_http_requests_total{method="GET",route="/health",status="200"} 2`)
	assert.Contains(t, exposition, `identity_auth_events_total{event="login",outcome="failure"} 1`)

	var logged bool
	for _, entry := range s.logs.AllEntries() {
		if entry.Message == "request" && entry.Data[requestIDKey] == "req-123" {
			logged = true
		}
	}
	assert.True(t, logged, "access log entry carries the request id")
}

func TestFail_HidesInternalDetail(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	h := NewHandler(Deps{Logger: logger})

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.GET("/boom", func(c *gin.Context) {
		h.fail(c, domain.ErrDatabase.Wrap(errors.New("pq: relation \"accounts\" does not exist")))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assertError(t, rec, domain.ErrDatabase)
	assert.NotContains(t, rec.Body.String(), "relation")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Data["error"], "relation")
}
