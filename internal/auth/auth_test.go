package auth

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !CheckPassword("secret123", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(42, "alice", false)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.IsAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestAdminClaimPreserved(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, _ := svc.GenerateToken(1, "Admin", true)
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !claims.IsAdmin {
		t.Error("admin flag lost in round trip")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := NewService("secret-a", time.Hour).GenerateToken(1, "alice", false)

	if _, err := NewService("secret-b", time.Hour).ValidateToken(token); err != ErrInvalidToken {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, _ := svc.GenerateToken(1, "alice", false)
	if _, err := svc.ValidateToken(token); err != ErrInvalidToken {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	if _, err := svc.ValidateToken("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}
