package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService(nil, []byte("test-secret"))
	user := uuid.New()

	token, err := svc.issueToken(user, RoleMusician)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, role, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id != user {
		t.Errorf("subject: got %s, want %s", id, user)
	}
	if role != RoleMusician {
		t.Errorf("role: got %q, want musician", role)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := NewService(nil, []byte("secret-a"))
	verifier := NewService(nil, []byte("secret-b"))

	token, err := issuer.issueToken(uuid.New(), RoleOrganizer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := verifier.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("token signed with another secret validated")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewService(nil, []byte("test-secret"))

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
		},
		Role: RoleOrganizer,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewService(nil, []byte("test-secret"))
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := svc.ValidateToken(context.Background(), tok); err == nil {
			t.Errorf("garbage token %q validated", tok)
		}
	}
}
