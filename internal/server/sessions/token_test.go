package sessions

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/voicedrop/internal/common"
)

func TestSignAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := SignSessionID("sid-123", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignSessionID error: %v", err)
	}

	got, err := ParseSessionID(tok, secret)
	if err != nil {
		t.Fatalf("ParseSessionID error: %v", err)
	}
	if got != "sid-123" {
		t.Fatalf("session id mismatch: got %q want %q", got, "sid-123")
	}
}

func TestParseSessionID_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := SignSessionID("sid", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("SignSessionID error: %v", err)
	}

	if _, err := ParseSessionID(tok, secret); err != common.ErrTokenExpired {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestParseSessionID_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := SignSessionID("sid", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("SignSessionID error: %v", err)
	}

	if _, err := ParseSessionID(tok, []byte("wrong-secret")); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParseSessionID_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseSessionID("not.a.jwt", []byte("k")); err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}

func TestParseSessionID_RejectsForeignTokens(t *testing.T) {
	t.Parallel()

	secret := []byte("k")

	noID := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := noID.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseSessionID(s, secret); err != common.ErrInvalidToken {
		t.Fatalf("token without id: want ErrInvalidToken, got %v", err)
	}

	otherIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "sid",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err = otherIssuer.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseSessionID(s, secret); err != common.ErrInvalidToken {
		t.Fatalf("foreign issuer: want ErrInvalidToken, got %v", err)
	}
}
