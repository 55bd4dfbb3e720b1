package server

import (
	contextpkg "context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/cadence/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/habits", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	handler := &httpHandler{
		tokens: stubBackendTokenManager{
			validateErr: jwt.ErrTokenExpired,
		},
		logger: logger,
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/habits", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	handler := &httpHandler{
		tokens: stubBackendTokenManager{
			validateErr: errors.New("signature mismatch"),
		},
		logger: logger,
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestAuthorizeRequestAcceptsQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/events?access_token=stream-token", http.NoBody)
	ctx.Request = request

	handler := &httpHandler{
		tokens: stubBackendTokenManager{subject: "user-9"},
		logger: zap.NewNop(),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code == http.StatusUnauthorized {
		t.Fatalf("expected query token to authorize the request")
	}
	if got := ctx.GetString(userIDContextKey); got != "user-9" {
		t.Fatalf("expected user id in context, got %q", got)
	}
}

func TestHandleSessionExchangeIssuesToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/auth/session", http.NoBody)

	handler := &httpHandler{
		sessions:   stubSessionValidator{claims: auth.SessionClaims{UserID: "google:77"}},
		identities: stubIdentityResolver{userID: "77"},
		tokens:     stubBackendTokenManager{issued: "bearer-token", expiresIn: 1800},
		logger:     zap.NewNop(),
	}

	handler.handleSessionExchange(ctx)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", recorder.Code)
	}
	var payload sessionResponsePayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.AccessToken != "bearer-token" {
		t.Fatalf("unexpected access token %q", payload.AccessToken)
	}
	if payload.ExpiresIn != 1800 {
		t.Fatalf("unexpected expiry %d", payload.ExpiresIn)
	}
	if payload.TokenType != "Bearer" {
		t.Fatalf("unexpected token type %q", payload.TokenType)
	}
}

func TestHandleSessionExchangeRejectsInvalidCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/auth/session", http.NoBody)

	handler := &httpHandler{
		sessions:   stubSessionValidator{err: auth.ErrInvalidSessionToken},
		identities: stubIdentityResolver{userID: "unused"},
		tokens:     stubBackendTokenManager{},
		logger:     zap.NewNop(),
	}

	handler.handleSessionExchange(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", recorder.Code)
	}
}

type stubBackendTokenManager struct {
	issued      string
	expiresIn   int64
	subject     string
	validateErr error
}

func (s stubBackendTokenManager) IssueBackendToken(contextpkg.Context, string) (string, int64, error) {
	return s.issued, s.expiresIn, nil
}

func (s stubBackendTokenManager) ValidateToken(string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	return s.subject, nil
}

type stubSessionValidator struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	if s.err != nil {
		return auth.SessionClaims{}, s.err
	}
	return s.claims, nil
}

type stubIdentityResolver struct {
	userID string
	err    error
}

func (s stubIdentityResolver) ResolveCanonicalUserID(auth.SessionClaims) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.userID, nil
}
