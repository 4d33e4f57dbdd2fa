package session

import (
	"errors"
	"time"

	"github.com/alexedwards/scs/gormstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"gorm.io/gorm"
)

var ErrNilDatabase = errors.New("database connection cannot be nil")

func NewMemoryStore() scs.Store {
	return memstore.New()
}

// NewDatabaseStore keeps sessions in the gormstore "sessions" table. A zero
// cleanupInterval disables the background sweep of expired rows.
func NewDatabaseStore(db *gorm.DB, cleanupInterval time.Duration) (scs.Store, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return gormstore.NewWithCleanupInterval(db, cleanupInterval)
}
