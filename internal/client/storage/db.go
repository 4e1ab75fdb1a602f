// Package storage opens the local store and bundles its repositories.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/memosync/internal/client/migrations"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/memos"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/resources"
	"github.com/dmitrijs2005/memosync/internal/dbx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store is the local store as the sync engine sees it.
type Store interface {
	Memos() memos.Repository
	Resources() resources.Repository
	Metadata() metadata.Repository
	// WithTx runs fn against a store bound to one transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dbx.Dialect

	memos     memos.Repository
	resources resources.Repository
	metadata  metadata.Repository
	inTx      bool
}

func NewSQLStore(db *sql.DB, dialect dbx.Dialect) *SQLStore {
	s := bind(db, dialect)
	s.db = db
	return s
}

func bind(conn dbx.DBTX, dialect dbx.Dialect) *SQLStore {
	return &SQLStore{
		dialect:   dialect,
		memos:     memos.NewSQLRepository(conn, dialect),
		resources: resources.NewSQLRepository(conn, dialect),
		metadata:  metadata.NewSQLRepository(conn, dialect),
	}
}

func (s *SQLStore) Memos() memos.Repository         { return s.memos }
func (s *SQLStore) Resources() resources.Repository { return s.resources }
func (s *SQLStore) Metadata() metadata.Repository   { return s.metadata }
func (s *SQLStore) Dialect() dbx.Dialect            { return s.dialect }

// WithTx commits when fn succeeds. Calls nested inside fn reuse the
// surrounding transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txStore := bind(tx, s.dialect)
		txStore.inTx = true
		return fn(ctx, txStore)
	})
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunMigrations applies the embedded schema for the dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	if _, err := migrations.Apply(ctx, db, dialect); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// InitDatabase opens the database for the driver ("sqlite" or "pgx"),
// migrates it and returns the store.
func InitDatabase(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	dialect, err := dbx.ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == dbx.DialectSQLite {
		// the background push queue and the REPL write concurrently
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewSQLStore(db, dialect), nil
}
