package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := IssueToken("s3cret", "user-42", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims, err := ParseToken("s3cret", tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID() != "user-42" {
		t.Errorf("expected user-42, got %q", claims.UserID())
	}
}

func TestParseTokenRejects(t *testing.T) {
	good, err := IssueToken("s3cret", "user-42", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	expired, err := IssueToken("s3cret", "user-42", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer: issuer, Subject: "user-42", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: issuer, Subject: "user-42",
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "s3cret", expired},
		{"alg none", "s3cret", none},
		{"missing expiry", "s3cret", noExpiry},
		{"garbage", "s3cret", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.secret, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNoSecret(t *testing.T) {
	if _, err := IssueToken("", "u", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("IssueToken: expected ErrNoSecret, got %v", err)
	}
	if _, err := ParseToken("", "x"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("ParseToken: expected ErrNoSecret, got %v", err)
	}
	if _, err := IssueToken("k", "  ", time.Hour); err == nil {
		t.Error("blank user id should be rejected")
	}
}
