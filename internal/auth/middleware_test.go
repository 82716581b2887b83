package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_BuyerForbiddenInvoiceSubmit(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "buyer-1", "buyer")
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades/trade-abc/invoice", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_SupplierForbiddenInvoiceApprove(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "supplier-1", "supplier")
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades/trade-abc/invoice/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_SupplierForbiddenCommission(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "supplier-1", "supplier")
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/commission/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_AdminAllowedConfirm(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "admin-1", "admin")
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorIDFromContext(r.Context()) != "admin-1" {
			t.Errorf("expected actor id in context")
		}
		if RoleFromContext(r.Context()) != RoleAdmin {
			t.Errorf("expected admin role in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades/trade-abc/confirm", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	secret := []byte("test-secret")
	policy := NewDefaultPolicy([]string{"/healthz"}, nil)
	mw := NewMiddleware(secret, policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestParseJWT_SentinelErrors(t *testing.T) {
	secret := []byte("test-secret")

	if _, err := ParseJWT("", secret); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token: err = %v, want ErrUnauthorized", err)
	}
	if _, err := ParseJWT("not-a-jwt", secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("malformed token: err = %v, want ErrInvalidToken", err)
	}

	wrongKey := mustToken(t, []byte("other-secret"), "buyer-1", "buyer")
	if _, err := ParseJWT(wrongKey, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key: err = %v, want ErrInvalidToken", err)
	}

	badRole := mustToken(t, secret, "buyer-1", "superuser")
	if _, err := ParseJWT(badRole, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown role: err = %v, want ErrInvalidToken", err)
	}

	good := mustToken(t, secret, "buyer-1", "buyer")
	claims, err := ParseJWT(good, secret)
	if err != nil {
		t.Fatalf("valid token: %v", err)
	}
	if claims.Subject != "buyer-1" || claims.Role != "buyer" {
		t.Fatalf("claims = %s/%s, want buyer-1/buyer", claims.Subject, claims.Role)
	}
}

func mustToken(t *testing.T, secret []byte, subject, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
