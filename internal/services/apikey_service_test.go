package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/db/models"
)

func TestAPIKeyServiceCreateAndAuthenticate(t *testing.T) {
	database := newTestDB(t)
	as := NewAPIKeyService(database, zap.NewNop())
	user := createTestUser(t, database, "jane@example.com", models.TierStarter)

	created, err := as.Create(context.Background(), user.ID, "ci key", []string{"documents:read"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(created.Key, "nda_") {
		t.Errorf("plaintext key %q missing prefix", created.Key)
	}
	if created.Model.KeyHash == created.Key {
		t.Error("key stored unhashed")
	}
	if created.Model.Prefix != created.Key[:12] {
		t.Errorf("prefix = %q, want first 12 chars of key", created.Model.Prefix)
	}

	authUser, authKey, err := as.Authenticate(context.Background(), created.Key)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if authUser.ID != user.ID {
		t.Errorf("resolved user = %s, want %s", authUser.ID, user.ID)
	}
	if authKey.ID != created.Model.ID {
		t.Errorf("resolved key = %s, want %s", authKey.ID, created.Model.ID)
	}

	if _, _, err := as.Authenticate(context.Background(), "nda_bogus"); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Errorf("bogus key: err = %v, want ErrAPIKeyInvalid", err)
	}
}

func TestAPIKeyServiceRevoke(t *testing.T) {
	database := newTestDB(t)
	as := NewAPIKeyService(database, zap.NewNop())
	user := createTestUser(t, database, "jane@example.com", models.TierStarter)
	other := createTestUser(t, database, "other@example.com", models.TierStarter)

	created, err := as.Create(context.Background(), user.ID, "ci key", nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Another user cannot revoke it.
	if err := as.Revoke(context.Background(), other.ID, created.Model.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("foreign revoke: err = %v, want ErrAPIKeyNotFound", err)
	}

	if err := as.Revoke(context.Background(), user.ID, created.Model.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := as.Authenticate(context.Background(), created.Key); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Errorf("revoked key: err = %v, want ErrAPIKeyInvalid", err)
	}
}

func TestAPIKeyServiceRejectsExpired(t *testing.T) {
	database := newTestDB(t)
	as := NewAPIKeyService(database, zap.NewNop())
	user := createTestUser(t, database, "jane@example.com", models.TierStarter)

	past := time.Now().Add(-time.Hour)
	created, err := as.Create(context.Background(), user.ID, "expired key", nil, &past)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := as.Authenticate(context.Background(), created.Key); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Errorf("expired key: err = %v, want ErrAPIKeyInvalid", err)
	}
}

func TestAPIKeyServiceRejectsInactiveOwner(t *testing.T) {
	database := newTestDB(t)
	as := NewAPIKeyService(database, zap.NewNop())
	user := createTestUser(t, database, "jane@example.com", models.TierStarter)

	created, err := as.Create(context.Background(), user.ID, "ci key", nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	database.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false)
	if _, _, err := as.Authenticate(context.Background(), created.Key); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Errorf("disabled owner: err = %v, want ErrAPIKeyInvalid", err)
	}
}

func TestAPIKeyServiceList(t *testing.T) {
	database := newTestDB(t)
	as := NewAPIKeyService(database, zap.NewNop())
	user := createTestUser(t, database, "jane@example.com", models.TierStarter)

	for _, name := range []string{"key a", "key b"} {
		if _, err := as.Create(context.Background(), user.ID, name, nil, nil); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	keys, err := as.List(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %d, want 2", len(keys))
	}

	keys, err = as.List(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("List foreign: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("foreign keys = %d, want 0", len(keys))
	}
}
