package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenServiceIssueAndVerify(t *testing.T) {
	ts := NewTokenService("test-secret", 30*time.Minute, 7*24*time.Hour)
	userID := uuid.New()

	pair, err := ts.IssuePair(userID)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token in pair")
	}
	if pair.ExpiresIn != int((30 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d", pair.ExpiresIn)
	}

	got, err := ts.Verify(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if got != userID {
		t.Errorf("subject = %s, want %s", got, userID)
	}

	if _, err := ts.Verify(pair.RefreshToken, TokenRefresh); err != nil {
		t.Errorf("Verify refresh: %v", err)
	}
}

func TestTokenServiceRejectsWrongUse(t *testing.T) {
	ts := NewTokenService("test-secret", time.Minute, time.Hour)
	pair, err := ts.IssuePair(uuid.New())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := ts.Verify(pair.RefreshToken, TokenAccess); !errors.Is(err, ErrWrongTokenUse) {
		t.Errorf("refresh as access: err = %v, want ErrWrongTokenUse", err)
	}
	if _, err := ts.Verify(pair.AccessToken, TokenRefresh); !errors.Is(err, ErrWrongTokenUse) {
		t.Errorf("access as refresh: err = %v, want ErrWrongTokenUse", err)
	}
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	ts := NewTokenService("test-secret", time.Minute, time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Verify(tt.token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	ts := NewTokenService("test-secret", -time.Minute, time.Hour)
	pair, err := ts.IssuePair(uuid.New())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := ts.Verify(pair.AccessToken, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenServiceRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Minute, time.Hour)
	verifier := NewTokenService("secret-b", time.Minute, time.Hour)

	pair, err := issuer.IssuePair(uuid.New())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := verifier.Verify(pair.AccessToken, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: err = %v, want ErrInvalidToken", err)
	}
}
