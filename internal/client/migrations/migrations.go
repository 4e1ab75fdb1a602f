// Package migrations embeds the local store schema, one goose directory per
// SQL dialect, and applies it.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/memosync/internal/dbx"
	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// FS returns the migration files for the dialect, rooted at their directory.
func FS(d dbx.Dialect) (fs.FS, error) {
	dir := "sqlite"
	if d == dbx.DialectPostgres {
		dir = "postgres"
	}
	return fs.Sub(files, dir)
}

func gooseDialect(d dbx.Dialect) goose.Dialect {
	if d == dbx.DialectPostgres {
		return goose.DialectPostgres
	}
	return goose.DialectSQLite3
}

// Apply runs every pending migration and returns the resulting version.
func Apply(ctx context.Context, db *sql.DB, d dbx.Dialect) (int64, error) {
	fsys, err := FS(d)
	if err != nil {
		return 0, fmt.Errorf("migrations fs: %w", err)
	}

	p, err := goose.NewProvider(gooseDialect(d), db, fsys)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}

	if _, err := p.Up(ctx); err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("db version: %w", err)
	}
	return v, nil
}
