package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Config selects the report store, a remote url takes precedence over the
// local file.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// DSN is the data source name Open expects.
func (c Config) DSN() string {
	if c.Url == "" {
		return c.File
	}
	if c.AuthToken == "" {
		return c.Url
	}
	u, err := url.Parse(c.Url)
	if err != nil {
		return c.Url
	}
	query := u.Query()
	query.Set("authToken", c.AuthToken)
	u.RawQuery = query.Encode()
	return u.String()
}

func wrapOpen(err error) error {
	return fmt.Errorf("open db: %w", err)
}

func remote(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "http://")
}

// Open connects to dsn and creates the schema. libsql:// and http(s) urls
// use the libsql client, anything else is a local sqlite file (or
// ":memory:").
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if remote(dsn) {
		db, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, wrapOpen(err)
		}
	} else {
		if dsn != ":memory:" {
			err = os.MkdirAll(filepath.Dir(dsn), 0777)
			if err != nil {
				return nil, wrapOpen(err)
			}
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, wrapOpen(err)
		}

		// sqlite allows a single writer, queueing on one connection avoids
		// SQLITE_BUSY
		db.SetMaxOpenConns(1)
		_, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, wrapOpen(err)
		}
	}

	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err = db.ExecContext(ctx, stmt)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return db, nil
}

// MakeTx is a function that creates a db transaction
type MakeTx = func(ctx context.Context) (tx *Queries, discard, commit func() error, err error)

func NewMakeTx(dbtx *sql.DB) MakeTx {
	return func(ctx context.Context) (tx *Queries, discard, commit func() error, err error) {
		sqltx, err := dbtx.BeginTx(ctx, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		txqry := New(sqltx)
		return txqry,
			func() error {
				return sqltx.Rollback()
			},
			func() error {
				return sqltx.Commit()
			},
			nil
	}
}
