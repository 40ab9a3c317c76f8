// Package dbtest opens throwaway SQLite databases for store tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewSQLite returns a bun DB on a private in-memory database with a table per model.
// The pool is pinned to one connection so transactions serialise like they would under
// a database lock.
func NewSQLite(t testing.TB, models ...interface{}) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, m := range models {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("create table for %T: %v", m, err)
		}
	}
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}
