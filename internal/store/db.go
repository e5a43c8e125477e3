package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flowmarket/marketplace/internal/config"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned on unique-key conflicts (email, slug).
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrConflict is returned when a state transition is not allowed
	// from the row's current state.
	ErrConflict = errors.New("store: conflicting state transition")
)

// Store owns all relational access. The search index is a projection of
// this data, never the other way around.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			LogLevel:      gormlogger.Error,
			SlowThreshold: time.Second,
		},
	)

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("acquiring sql pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&Template{}, &Freelancer{}, &Implementation{}, &Category{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
	)

	return &Store{db: db, logger: logger}, nil
}

// HealthCheck pings the underlying connection pool.
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateError maps driver errors onto the store's sentinel errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrDuplicate
	}
	return err
}
