package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthenticator(t *testing.T, ttl time.Duration) *Authenticator {
	t.Helper()

	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	return New("admin", hash, testSecret, ttl)
}

func TestLoginAndVerify(t *testing.T) {
	a := newTestAuthenticator(t, time.Hour)

	token, expires, err := a.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if time.Until(expires) < 59*time.Minute {
		t.Errorf("Expected expiry about one hour ahead, got: %v", expires)
	}

	claims, err := a.Verify(token)
	if err != nil {
		t.Fatalf("Expected valid token, got: %v", err)
	}
	if claims.Subject != "admin" || claims.Role != RoleAdmin {
		t.Errorf("Expected admin claims, got: %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestAuthenticator(t, time.Hour)

	tests := []struct {
		username string
		password string
	}{
		{"admin", "wrong"},
		{"root", "s3cret"},
		{"", ""},
	}

	for _, tt := range tests {
		if _, _, err := a.Login(tt.username, tt.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials for %s/%s, got: %v", tt.username, tt.password, err)
		}
	}
}

func TestVerifyRejectsInvalidTokens(t *testing.T) {
	a := newTestAuthenticator(t, time.Hour)

	other := New("admin", "", "another-secret-another-secret-xx", time.Hour)
	other.passwordHash = a.passwordHash
	foreign, _, err := other.Login("admin", "s3cret")
	if err != nil {
		t.Fatal(err)
	}

	expired := newTestAuthenticator(t, -time.Minute)
	stale, _, err := expired.Login("admin", "s3cret")
	if err != nil {
		t.Fatal(err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	for name, token := range map[string]string{
		"garbage":     "not-a-token",
		"foreign key": foreign,
		"expired":     stale,
		"alg none":    none,
	} {
		if _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for %s, got: %v", name, err)
		}
	}
}
