package security

import (
	"testing"
)

func TestNewRotationSecret_Format(t *testing.T) {
	s, err := NewRotationSecret()
	if err != nil {
		t.Fatalf("NewRotationSecret: %v", err)
	}
	if len(s) != 64 {
		t.Errorf("secret length = %d, want 64 (SHA-256 hex)", len(s))
	}
}

func TestNewRotationSecret_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := NewRotationSecret()
		if err != nil {
			t.Fatalf("NewRotationSecret: %v", err)
		}
		if seen[s] {
			t.Fatalf("duplicate rotation secret %q", s)
		}
		seen[s] = true
	}
}

func TestSecretEqual(t *testing.T) {
	s, _ := NewRotationSecret()
	if !SecretEqual(s, s) {
		t.Error("SecretEqual should match identical secrets")
	}
	other := "0"
	if s[0] == '0' {
		other = "1"
	}
	if SecretEqual(s, other+s[1:]) {
		t.Error("SecretEqual should reject different content")
	}
	if SecretEqual(s, "a"+s) {
		t.Error("SecretEqual should reject different length")
	}
	if SecretEqual("", "") {
		t.Error("SecretEqual should not match empty inputs")
	}
}
