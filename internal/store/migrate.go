package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movieclub/db"
)

// goose keeps its filesystem, dialect and logger in package state.
var gooseMu sync.Mutex

type gooseRunner struct {
	db *sql.DB
}

type gooseLogger struct {
	logger *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.logger.Errorf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.logger.Infof(format, v...) }

func (s *Store) runMigrations(ctx context.Context, run func(context.Context, gooseRunner) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store not initialized")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(db.Migrations)
	goose.SetLogger(gooseLogger{logger: s.logger.Named("goose").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(s.pool)
	defer sqlDB.Close()

	if err := run(ctx, gooseRunner{db: sqlDB}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
