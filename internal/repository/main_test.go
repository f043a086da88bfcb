package repository

import (
	"fmt"
	"sync/atomic"
	"testing"

	"parley/internal/database"
	"parley/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// newTestDB opens a fresh in-memory database with the full schema migrated.
// Each call gets its own named database so parallel tests stay isolated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	email := username + "@example.com"
	user := &models.User{
		Username:     username,
		DisplayName:  username,
		Email:        &email,
		PasswordHash: "not-a-real-hash",
		Kind:         models.UserKindRegistered,
		Role:         models.RoleClient,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestGuest(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Kind:     models.UserKindGuest,
		Role:     models.RoleGuest,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
