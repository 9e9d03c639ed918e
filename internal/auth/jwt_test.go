package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zoneinfo/server/internal/config"
)

func testTokenService(expiry time.Duration) *TokenService {
	return NewTokenService(config.AuthConfig{
		JWTSecret:     "test_jwt_secret_key_32_bytes_long!!",
		JWTExpiration: expiry,
	})
}

func TestTokenService_GenerateToken(t *testing.T) {
	service := testTokenService(15 * time.Minute)

	token, err := service.GenerateToken("ops-1", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.Subject != "ops-1" {
		t.Errorf("Expected subject 'ops-1', got %s", claims.Subject)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Expected role %q, got %s", RoleOperator, claims.Role)
	}
	if claims.Issuer != Issuer {
		t.Errorf("Expected issuer %q, got %s", Issuer, claims.Issuer)
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		t.Errorf("Expected a UUID token id, got %q", claims.ID)
	}
}

func TestTokenService_GenerateToken_Rejects(t *testing.T) {
	service := testTokenService(time.Minute)

	if _, err := service.GenerateToken("", RoleOperator); err == nil {
		t.Error("Expected error for empty subject")
	}
	if _, err := service.GenerateToken("ops-1", "admin"); err == nil {
		t.Error("Expected error for unknown role")
	}
}

func TestTokenService_ValidateToken_Invalid(t *testing.T) {
	service := testTokenService(time.Minute)

	if _, err := service.ValidateToken("invalid.token.here"); err == nil {
		t.Error("ValidateToken() should fail for invalid token")
	}

	other := NewTokenService(config.AuthConfig{JWTSecret: "another_secret_key_32_bytes_long!!!", JWTExpiration: time.Minute})
	token, err := other.GenerateToken("ops-1", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	if _, err := service.ValidateToken(token); err == nil {
		t.Error("ValidateToken() should fail for a token signed with another secret")
	}
}

func TestTokenService_ValidateToken_Expired(t *testing.T) {
	service := testTokenService(-time.Minute)

	token, err := service.GenerateToken("ops-1", RoleOperator)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	if _, err := service.ValidateToken(token); err == nil {
		t.Error("ValidateToken() should fail for an expired token")
	}
}

func TestTokenService_ValidateToken_WrongIssuer(t *testing.T) {
	service := testTokenService(time.Minute)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "ops-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: RoleOperator,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.secret)
	if err != nil {
		t.Fatalf("SignedString() failed: %v", err)
	}
	if _, err := service.ValidateToken(token); err == nil {
		t.Error("ValidateToken() should fail for a foreign issuer")
	}
}

func TestMiddleware_RequireOperator(t *testing.T) {
	service := testTokenService(time.Minute)
	mw := NewMiddleware(service, nil)
	handler := mw.RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ := GetSubject(r)
		w.Header().Set("X-Subject", subject)
		w.WriteHeader(http.StatusNoContent)
	}))

	operator, _ := service.GenerateToken("ops-1", RoleOperator)
	viewer, _ := service.GenerateToken("viewer-1", RoleViewer)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"viewer", "Bearer " + viewer, http.StatusForbidden},
		{"operator", "Bearer " + operator, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/zoneinfo/recount", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rr.Code)
			}
			if tt.want == http.StatusNoContent && rr.Header().Get("X-Subject") != "ops-1" {
				t.Errorf("Expected subject in context, got %q", rr.Header().Get("X-Subject"))
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	SecurityHeaders(false)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("Expected no HSTS header in development")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff header")
	}

	rr = httptest.NewRecorder()
	SecurityHeaders(true)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("Expected HSTS header")
	}
}
