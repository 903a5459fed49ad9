package testhelpers

import (
	"testing"
	"time"

	"github.com/localnerve/crmsync/internal/database"
	"github.com/localnerve/crmsync/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestSecret signs every token issued by TestToken.
const TestSecret = "test-secret"

// OpenTestDB creates a migrated in-memory SQLite database for the server tables
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Every connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying SQL DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// TestToken issues a bearer token for userID signed with TestSecret
func TestToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := services.IssueToken(TestSecret, userID, userID, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}
