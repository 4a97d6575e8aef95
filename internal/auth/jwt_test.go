package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestJWTService_GenerateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "user", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if token == "" {
		t.Fatal("Expected token to be generated")
	}
}

func TestJWTService_ValidateToken(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	userID := uuid.New()
	token, err := service.GenerateToken(userID, "mod@example.com", "moderator", 3)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected userID %s, got %s", userID.String(), claims.UserID.String())
	}
	if claims.Role != "moderator" {
		t.Errorf("Expected role moderator, got %s", claims.Role)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("Expected token version 3, got %d", claims.TokenVersion)
	}
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	service := NewJWTService("test-secret-key", 24)

	_, err := service.ValidateToken("invalid.token.here")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTService_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 24).GenerateToken(uuid.New(), "a@example.com", "user", 0)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := NewJWTService("secret-b", 24).ValidateToken(token); err == nil {
		t.Fatal("Expected error for token signed with another secret")
	}
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret-key", -1) // expired on issue

	token, err := service.GenerateToken(uuid.New(), "test@example.com", "user", 0)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := service.ValidateToken(token); err == nil {
		t.Fatal("Expected error for expired token")
	}
}
