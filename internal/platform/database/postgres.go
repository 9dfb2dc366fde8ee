package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prep_arena/internal/platform/config"
	"prep_arena/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

var DB *sql.DB

var dbLog = logger.NewNamedLogger("database")

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		dbLog.Fatalf("Error opening database: %v", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		dbLog.Fatalf("Error connecting to database: %v", err)
	}

	dbLog.Info("Successfully connected to PostgreSQL database")
}

func Close() {
	if DB != nil {
		DB.Close()
		dbLog.Info("Database connection closed")
	}
}

// TxRunner runs a set of storage operations as one atomic unit of work.
// Everything the closure writes is applied on a nil error and discarded
// otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
