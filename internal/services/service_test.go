package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return database
}

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		JWTSecret:          "test-secret",
		AccessTokenExpiry:  30 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		ResetTokenExpiry:   time.Hour,
		VerifyTokenExpiry:  48 * time.Hour,
	}
}

func newTestAccountService(t *testing.T) (*AccountService, *gorm.DB) {
	t.Helper()
	database := newTestDB(t)
	logger := zap.NewNop()
	mail := NewMailService(config.MailConfig{}, logger)
	usage := NewUsageService(database, logger)
	return NewAccountService(database, testSecurityConfig(), mail, usage, logger, metrics.NewCollector()), database
}

func createTestUser(t *testing.T, database *gorm.DB, email string, tier models.Tier) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.RoleUser,
		Tier:         tier,
		IsActive:     true,
	}
	if err := database.Create(user).Error; err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}
