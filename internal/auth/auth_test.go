package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	token, err := v.Issue(42, "alice", "admin")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected uid=42, got %d", claims.UserID)
	}
	if claims.UserName != "alice" {
		t.Errorf("expected name=alice, got %q", claims.UserName)
	}
	if claims.Role != "admin" {
		t.Errorf("expected role=admin, got %q", claims.Role)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a", time.Hour).Issue(1, "bob", "member")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := NewVerifier("secret-b", time.Hour).Verify(token); err == nil {
		t.Error("expected verification to fail with the wrong secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	v := NewVerifier("test-secret", -time.Minute)
	token, err := v.Issue(1, "bob", "member")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := v.Verify(token); err == nil {
		t.Error("expected verification of an expired token to fail")
	}
}

func TestVerify_Garbage(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)
	if _, err := v.Verify("not-a-jwt"); err == nil {
		t.Error("expected garbage input to fail verification")
	}
}

func TestAuthenticate(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)
	token, err := v.Issue(7, "carol", "member")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	uid, name, role, err := v.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if uid != 7 || name != "carol" || role != "member" {
		t.Errorf("unexpected identity: uid=%d name=%q role=%q", uid, name, role)
	}
}
