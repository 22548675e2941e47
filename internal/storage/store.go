package storage

import (
	"context"
	"fmt"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Store is a Repository that owns a connection.
type Store interface {
	domain.Repository
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	Driver string
	DSN    string
	LogSQL bool
}

// Open builds the configured backend and migrates its schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Driver == DriverMemory {
		return NewMemoryStore(), nil
	}

	db, err := OpenGorm(opts)
	if err != nil {
		return nil, err
	}

	store := NewGormStore(db)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// OpenGorm connects without migrating.
func OpenGorm(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(opts.DSN)
	case DriverMySQL:
		dialector = mysql.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}

	logMode := gormlogger.Silent
	if opts.LogSQL {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if db.Dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		// One connection: SQLite writers never race and :memory: stays shared.
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}
