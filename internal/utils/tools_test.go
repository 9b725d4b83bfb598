package utils

import (
	"strings"
	"testing"
)

func TestCheckPasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		issues   int
	}{
		{name: "strong", password: "Str0ng!pass", issues: 0},
		{name: "too short", password: "A1!a", issues: 1},
		{name: "no uppercase", password: "weak1pass!", issues: 1},
		{name: "no digit or special", password: "Weakpassword", issues: 2},
		{name: "everything wrong", password: "abc", issues: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := CheckPasswordStrength(tt.password)
			if len(issues) != tt.issues {
				t.Errorf("got %d issues %v, want %d", len(issues), issues, tt.issues)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Str0ng!pass" {
		t.Fatal("hash equals plaintext")
	}
	if !VerifyPassword(hash, "Str0ng!pass") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mutual NDA (final).pdf", "Mutual-NDA-final.pdf"},
		{"../../etc/passwd", "etcpasswd"},
		{"report 2024.docx", "report-2024.docx"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSecureFilename(t *testing.T) {
	name := SecureFilename("agreement.pdf", "owner-1")
	if !strings.HasPrefix(name, "owner-1_") {
		t.Errorf("missing owner prefix: %q", name)
	}
	if !strings.HasSuffix(name, ".pdf") {
		t.Errorf("missing extension: %q", name)
	}

	other := SecureFilename("agreement.pdf", "owner-1")
	if name == other {
		t.Error("expected unique names for repeated calls")
	}
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	if a != HashToken("token-a") {
		t.Error("hash not deterministic")
	}
	if a == HashToken("token-b") {
		t.Error("distinct tokens collide")
	}
	if len(a) != 64 {
		t.Errorf("unexpected digest length %d", len(a))
	}
}

func TestNewAPIKey(t *testing.T) {
	key := NewAPIKey()
	if !strings.HasPrefix(key, "nda_") {
		t.Errorf("missing prefix: %q", key)
	}
	if key == NewAPIKey() {
		t.Error("expected unique keys")
	}
}
