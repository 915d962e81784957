package utils_test

import (
	"testing"

	"sprintsync/microservices/dashboard-service/utils"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := utils.GenerateToken("alice", "member")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	claims, err := utils.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if claims.Username != "alice" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := utils.GenerateToken("alice", "member")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	t.Setenv("JWT_SECRET", "other-secret")
	if _, err := utils.ValidateToken(token); err == nil {
		t.Fatalf("expected validation to fail with wrong secret")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := utils.ValidateToken("not-a-token"); err == nil {
		t.Fatalf("expected validation to fail for malformed token")
	}
}
