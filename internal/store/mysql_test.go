// internal/store/mysql_test.go
//
// Unit-tests for the MySQL store using sqlmock.

package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockStore(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQL(sqlx.NewDb(db, "sqlmock"), "wp_"), mock
}

func TestSQLFindEntityBySourceKey(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`p.post_type <> 'attachment' LIMIT 1`)).
		WithArgs(SourceIDKey, "42", SourceTenantKey, "3").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(101))

	id, ok, err := s.FindEntityBySourceKey(context.Background(), KindEntry, 42, 3)
	if err != nil || !ok || id != 101 {
		t.Fatalf("got id=%d ok=%v err=%v", id, ok, err)
	}

	// attachments search the attachment partition and a miss is not an error
	mock.ExpectQuery(regexp.QuoteMeta(`p.post_type = 'attachment' LIMIT 1`)).
		WithArgs(SourceIDKey, "42", SourceTenantKey, "3").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))

	_, ok, err = s.FindEntityBySourceKey(context.Background(), KindAttachment, 42, 3)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSQLSetEntityMeta_InsertThenUpdate(t *testing.T) {
	s, mock := newMockStore(t)

	// first write inserts
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT meta_id FROM wp_postmeta WHERE post_id = ? AND meta_key = ? LIMIT 1`,
	)).
		WithArgs(int64(7), "color").
		WillReturnRows(sqlmock.NewRows([]string{"meta_id"}))
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES (?,?,?)`,
	)).
		WithArgs(int64(7), "color", "blue").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.SetEntityMeta(context.Background(), 7, "color", "blue"); err != nil {
		t.Fatalf("SetEntityMeta insert: %v", err)
	}

	// second write updates in place
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT meta_id FROM wp_postmeta`)).
		WithArgs(int64(7), "color").
		WillReturnRows(sqlmock.NewRows([]string{"meta_id"}).AddRow(55))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE wp_postmeta SET meta_value = ? WHERE meta_id = ?`,
	)).
		WithArgs("red", int64(55)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.SetEntityMeta(context.Background(), 7, "color", "red"); err != nil {
		t.Fatalf("SetEntityMeta update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSQLSetOption_Upsert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO wp_options (option_name, option_value, autoload) VALUES (?,?,'no') ON DUPLICATE KEY UPDATE option_value = VALUES(option_value)`,
	)).
		WithArgs("wpmigrate_run_id", "7").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.SetOption(context.Background(), "wpmigrate_run_id", "7"); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSQLCreateTerm(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO wp_terms (name, slug, term_group) VALUES (?,?,0)`,
	)).
		WithArgs("News", "news").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO wp_term_taxonomy (term_id, taxonomy, description, parent, count) VALUES (?,?,?,?,0)`,
	)).
		WithArgs(int64(12), "category", "", int64(0)).
		WillReturnResult(sqlmock.NewResult(12, 1))

	id, err := s.CreateTerm(context.Background(), Term{Taxonomy: "category", Name: "News", Slug: "news"})
	if err != nil || id != 12 {
		t.Fatalf("CreateTerm: id=%d err=%v", id, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	m := NewMemory("coverage")
	ctx := context.Background()

	id, err := m.CreateEntity(ctx, Entity{Kind: "post", Title: "hello", Status: "publish"})
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if err := m.SetEntityMeta(ctx, id, SourceIDKey, "9"); err != nil {
		t.Fatalf("SetEntityMeta: %v", err)
	}
	if err := m.SetEntityMeta(ctx, id, SourceTenantKey, "2"); err != nil {
		t.Fatalf("SetEntityMeta: %v", err)
	}

	got, ok, err := m.FindEntityBySourceKey(ctx, KindEntry, 9, 2)
	if err != nil || !ok || got != id {
		t.Fatalf("FindEntityBySourceKey: got=%d ok=%v err=%v", got, ok, err)
	}
	// attachment partition must not see entries
	if _, ok, _ := m.FindEntityBySourceKey(ctx, KindAttachment, 9, 2); ok {
		t.Fatal("entry leaked into attachment partition")
	}

	if ok, _ := m.TaxonomyExists(ctx, "coverage"); !ok {
		t.Fatal("registered taxonomy missing")
	}
	if ok, _ := m.TaxonomyExists(ctx, "nope"); ok {
		t.Fatal("unknown taxonomy reported present")
	}

	tid, err := m.CreateTerm(ctx, Term{Taxonomy: "category", Name: "News", Slug: "news"})
	if err != nil {
		t.Fatalf("CreateTerm: %v", err)
	}
	if err := m.AssignTerms(ctx, id, "category", []int64{tid}, false); err != nil {
		t.Fatalf("AssignTerms: %v", err)
	}
	// appending the same term twice keeps one relation
	_ = m.AssignTerms(ctx, id, "category", []int64{tid}, false)
	terms, _ := m.EntityTerms(ctx, id, "category")
	if len(terms) != 1 || terms[0] != tid {
		t.Fatalf("unexpected relations: %v", terms)
	}
}
