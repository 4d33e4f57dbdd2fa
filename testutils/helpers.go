package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an in-memory sqlite database limited to one connection,
// so concurrent goroutines in a test share the same schema.
func SetupTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		err = db.AutoMigrate(models...)
		require.NoError(t, err)
	}

	return db
}

// AssertErrorType requires actual to carry exactly the expected message.
func AssertErrorType(t *testing.T, expected error, actual error) {
	t.Helper()
	require.Error(t, actual)
	require.Equal(t, expected.Error(), actual.Error())
}

// NewObservedLogger returns a logging service whose entries are captured in memory.
func NewObservedLogger() (*logging.Service, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromLogger(zap.New(core)), logs
}

// AssertNotLogged fails if any captured message or field contains one of the secrets.
func AssertNotLogged(t *testing.T, logs *observer.ObservedLogs, secrets ...string) {
	t.Helper()
	for _, entry := range logs.All() {
		for _, secret := range secrets {
			if secret == "" {
				continue
			}
			require.NotContains(t, entry.Message, secret)
			for key, value := range entry.ContextMap() {
				require.NotContains(t, fmt.Sprint(value), secret, "secret leaked in field %q", key)
				require.False(t, strings.Contains(key, secret))
			}
		}
	}
}
