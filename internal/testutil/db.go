// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/mroshb/ludus_arena/internal/database"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory sqlite database. The pool is pinned to a
// single connection because every sqlite :memory: connection is its own
// database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := database.GormConfig("test")
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)

	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedGladiator inserts a living gladiator on server "s1" unless overridden.
func SeedGladiator(t *testing.T, db *gorm.DB, g models.Gladiator) models.Gladiator {
	t.Helper()

	if g.ServerID == "" {
		g.ServerID = "s1"
	}
	if g.Name == "" {
		g.Name = g.ID
	}
	if g.LudusID == "" {
		g.LudusID = "ludus-" + g.OwnerID
	}
	if g.Health == 0 {
		g.Health = 100
	}
	g.Alive = true
	require.NoError(t, db.Create(&g).Error)
	return g
}

// KillGladiator flips the alive flag, which gorm would skip as a zero value on create.
func KillGladiator(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Model(&models.Gladiator{}).Where("id = ?", id).Update("alive", false).Error)
}
