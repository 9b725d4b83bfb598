package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jahboukie/ndarite/internal/db"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

type authTestEnv struct {
	engine  *gin.Engine
	db      *gorm.DB
	tokens  *services.TokenService
	apiKeys *services.APIKeyService
	auth    *AuthMiddleware
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zap.NewNop()
	tokens := services.NewTokenService("test-secret", time.Minute, time.Hour)
	apiKeys := services.NewAPIKeyService(database, logger)
	auth := NewAuthMiddleware(tokens, apiKeys, database, logger)

	engine := gin.New()
	engine.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": CurrentUser(c).Email})
	})
	engine.GET("/admin", auth.RequireAuth(), auth.RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	engine.GET("/premium", auth.RequireAuth(), auth.RequireTier(models.TierProfessional), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return &authTestEnv{engine: engine, db: database, tokens: tokens, apiKeys: apiKeys, auth: auth}
}

func (env *authTestEnv) createUser(t *testing.T, email string, role models.UserRole, tier models.Tier) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		Tier:         tier,
		IsActive:     true,
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (env *authTestEnv) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	env.engine.ServeHTTP(w, req)
	return w
}

func TestRequireAuthWithBearerToken(t *testing.T) {
	env := newAuthTestEnv(t)
	user := env.createUser(t, "jane@example.com", models.RoleUser, models.TierFree)

	pair, err := env.tokens.IssuePair(user.ID)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	t.Run("valid access token", func(t *testing.T) {
		w := env.get("/me", map[string]string{"Authorization": "Bearer " + pair.AccessToken})
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200: %s", w.Code, w.Body)
		}
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		w := env.get("/me", map[string]string{"Authorization": "Bearer " + pair.RefreshToken})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		if w := env.get("/me", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		w := env.get("/me", map[string]string{"Authorization": "Bearer nope"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestRequireAuthRejectsInactiveUser(t *testing.T) {
	env := newAuthTestEnv(t)
	user := env.createUser(t, "jane@example.com", models.RoleUser, models.TierFree)
	pair, _ := env.tokens.IssuePair(user.ID)

	env.db.Model(user).Update("is_active", false)

	w := env.get("/me", map[string]string{"Authorization": "Bearer " + pair.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthWithAPIKey(t *testing.T) {
	env := newAuthTestEnv(t)
	user := env.createUser(t, "jane@example.com", models.RoleUser, models.TierStarter)

	created, err := env.apiKeys.Create(context.Background(), user.ID, "ci", nil, nil)
	if err != nil {
		t.Fatalf("Create key: %v", err)
	}

	w := env.get("/me", map[string]string{"X-API-Key": created.Key})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", w.Code, w.Body)
	}

	w = env.get("/me", map[string]string{"X-API-Key": "nda_invalid"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid key status = %d, want 401", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	env := newAuthTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin, models.TierEnterprise)
	user := env.createUser(t, "user@example.com", models.RoleUser, models.TierFree)

	adminPair, _ := env.tokens.IssuePair(admin.ID)
	userPair, _ := env.tokens.IssuePair(user.ID)

	if w := env.get("/admin", map[string]string{"Authorization": "Bearer " + adminPair.AccessToken}); w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", w.Code)
	}
	if w := env.get("/admin", map[string]string{"Authorization": "Bearer " + userPair.AccessToken}); w.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", w.Code)
	}
}

func TestRequireTier(t *testing.T) {
	env := newAuthTestEnv(t)

	tests := []struct {
		name string
		tier models.Tier
		want int
	}{
		{name: "free blocked", tier: models.TierFree, want: http.StatusForbidden},
		{name: "starter blocked", tier: models.TierStarter, want: http.StatusForbidden},
		{name: "professional allowed", tier: models.TierProfessional, want: http.StatusOK},
		{name: "enterprise allowed", tier: models.TierEnterprise, want: http.StatusOK},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := env.createUser(t, tt.name+"@example.com", models.RoleUser, tt.tier)
			pair, _ := env.tokens.IssuePair(user.ID)
			w := env.get("/premium", map[string]string{"Authorization": "Bearer " + pair.AccessToken})
			if w.Code != tt.want {
				t.Errorf("case %d: status = %d, want %d", i, w.Code, tt.want)
			}
		})
	}
}
