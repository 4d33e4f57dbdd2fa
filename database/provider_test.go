package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/logging"
	"gorm.io/gorm"
)

func createTestConfig(driver, dsn string, autoMigrate bool) config.Config {
	return config.Config{
		Database: config.DatabaseConfig{
			Driver:      driver,
			DSN:         dsn,
			AutoMigrate: autoMigrate,
		},
	}
}

type TestModel struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255"`
}

type SecondModel struct {
	ID    uint `gorm:"primaryKey"`
	Value string
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestWithModels(t *testing.T) {
	t.Run("with multiple models", func(t *testing.T) {
		option := WithModels(TestModel{}, &SecondModel{})

		assert.Len(t, option.Models(), 2)
	})

	t.Run("nil option has no models", func(t *testing.T) {
		var option *ModelsOption

		assert.Nil(t, option.Models())
	})
}

func TestMerge(t *testing.T) {
	merged := Merge(WithModels(TestModel{}), nil, WithModels(SecondModel{}))

	assert.Len(t, merged.Models(), 2)
	assert.Empty(t, Merge().Models())
}

func TestProvideDatabase_SQLite(t *testing.T) {
	logger := logging.NewNop()

	t.Run("in-memory database uses a single connection", func(t *testing.T) {
		db, err := ProvideDatabase(createTestConfig("sqlite", ":memory:", false), nil, logger)
		require.NoError(t, err)
		defer closeDB(t, db)

		sqlDB, err := db.DB()
		require.NoError(t, err)
		assert.NoError(t, sqlDB.Ping())
		assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	})

	t.Run("file-based database", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := ProvideDatabase(createTestConfig("sqlite", dbPath, false), nil, logger)
		require.NoError(t, err)
		defer closeDB(t, db)

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})

	t.Run("auto-migration enabled", func(t *testing.T) {
		db, err := ProvideDatabase(createTestConfig("sqlite", ":memory:", true), WithModels(TestModel{}, SecondModel{}), logger)
		require.NoError(t, err)
		defer closeDB(t, db)

		assert.True(t, db.Migrator().HasTable(&TestModel{}))
		assert.True(t, db.Migrator().HasTable(&SecondModel{}))
	})

	t.Run("auto-migration disabled", func(t *testing.T) {
		db, err := ProvideDatabase(createTestConfig("sqlite", ":memory:", false), WithModels(TestModel{}), logger)
		require.NoError(t, err)
		defer closeDB(t, db)

		assert.False(t, db.Migrator().HasTable(&TestModel{}))
	})

	t.Run("invalid path", func(t *testing.T) {
		db, err := ProvideDatabase(createTestConfig("sqlite", "/nonexistent/directory/test.db", false), nil, logger)

		assert.Error(t, err)
		assert.Nil(t, db)
		assert.Contains(t, err.Error(), "failed to connect to database")
	})
}

func TestProvideDatabase_UnsupportedDriver(t *testing.T) {
	db, err := ProvideDatabase(createTestConfig("oracle", "test", false), nil, nil)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver: oracle")
	assert.Contains(t, err.Error(), "supported: sqlite, postgres, mysql")
}

func TestProvideDatabase_AutoMigrationFailure(t *testing.T) {
	type InvalidChannelModel struct {
		ID      uint `gorm:"primaryKey"`
		Channel chan string
	}

	db, err := ProvideDatabase(createTestConfig("sqlite", ":memory:", true), WithModels(InvalidChannelModel{}), nil)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to auto-migrate models")
}
