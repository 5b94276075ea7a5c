// internal/engine/engine_test.go
//
// Shared harness: sqlmock stands in for the remote database, the
// in-memory store for the local side.

package engine

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hacklabr/wpmigrate/internal/identity"
	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
)

func newTestEngine(t *testing.T, multiTenant bool, taxonomies ...string) (*Engine, sqlmock.Sqlmock, *store.Memory) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	remote := sqlx.NewDb(db, "sqlmock")
	mem := store.NewMemory(taxonomies...)
	log := zap.NewNop().Sugar()
	ids := identity.NewMapper(mem, 0, log)

	tables := source.Tables{Prefix: "wp_", MultiTenant: multiTenant}
	return New(remote, tables, mem, ids, nil, log), mock, mem
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
