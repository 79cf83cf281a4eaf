package utils

import (
	"testing"
	"time"
)

func TestJWT(t *testing.T) {
	secret := "test-secret-key-12345"

	// Test Generation
	token, err := GenerateOperatorToken("T01", "Somchai Engineering", secret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Token should not be empty")
	}

	// Test Validation (Success)
	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate valid token: %v", err)
	}
	if claims["sub"] != "T01" {
		t.Errorf("Expected sub T01, got %v", claims["sub"])
	}
	if claims["type"] != "operator" {
		t.Errorf("Expected type operator, got %v", claims["type"])
	}

	// Test Validation (Wrong Secret)
	if _, err := ValidateToken(token, "wrong-secret"); err == nil {
		t.Error("Token should fail validation with wrong secret")
	}

	// Test Validation (Garbage)
	if _, err := ValidateToken("not.a.token", secret); err == nil {
		t.Error("Garbage token should fail validation")
	}
}

func TestJWT_NonPositiveTTL(t *testing.T) {
	token, err := GenerateOperatorToken("T02", "Wipa Tech", "s", -time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	// non-positive ttl falls back to the default lifetime
	if _, err := ValidateToken(token, "s"); err != nil {
		t.Errorf("Default TTL token should be valid: %v", err)
	}
}

func TestJWT_EmptySecret(t *testing.T) {
	if _, err := GenerateOperatorToken("T01", "x", "", time.Hour); err == nil {
		t.Error("Expected error for empty secret")
	}
}
