// internal/source/fetch_test.go
//
// Unit-tests for the term, account, and resource fetchers using sqlmock.

package source

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestFetchTermIDs_ParentFirst(t *testing.T) {
	db, mock := newMockDB(t)
	tables := Tables{Prefix: "wp_", MultiTenant: true}
	tenant := 2

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT DISTINCT t.term_id, tx.parent FROM wp_2_terms t JOIN wp_2_term_taxonomy tx ON tx.term_id = t.term_id WHERE tx.taxonomy IN (?) ORDER BY tx.parent ASC, t.term_id ASC`,
	)).
		WithArgs("category").
		WillReturnRows(sqlmock.NewRows([]string{"term_id", "parent"}).
			AddRow(10, 0).
			AddRow(30, 0).
			AddRow(20, 10).
			AddRow(20, 10)) // same term reachable twice stays once

	ids, err := FetchTermIDs(context.Background(), db, tables, TermFilter{
		Tenant:     &tenant,
		Taxonomies: []string{"category"},
	})
	if err != nil {
		t.Fatalf("FetchTermIDs error: %v", err)
	}
	want := []int64{10, 30, 20}
	if len(ids) != len(want) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order lost: got %v, want %v", ids, want)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestFetchTerms_MetaMerged(t *testing.T) {
	db, mock := newMockDB(t)
	tables := Tables{Prefix: "wp_", MultiTenant: false}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE t.term_id IN (?,?)`)).
		WithArgs(int64(10), int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{
			"term_id", "name", "slug", "term_group", "taxonomy", "description", "parent",
		}).
			AddRow(10, "News", "news", 0, "category", "", 0).
			AddRow(20, "Local", "local", 0, "category", "", 10))

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT term_id, meta_key, meta_value FROM wp_termmeta WHERE term_id IN (?,?) ORDER BY meta_id ASC`,
	)).
		WithArgs(int64(10), int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"term_id", "meta_key", "meta_value"}).
			AddRow(20, "color", "blue"))

	rows, err := FetchTerms(context.Background(), db, tables, TermFilter{}, []int64{10, 20})
	if err != nil {
		t.Fatalf("FetchTerms error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(rows))
	}
	if rows[1].ParentID != 10 || len(rows[1].Meta) != 1 || rows[1].Meta[0].Key != "color" {
		t.Fatalf("unexpected child term: %#v", rows[1])
	}
	if len(rows[0].Meta) != 0 {
		t.Fatalf("meta leaked onto wrong term: %#v", rows[0])
	}
}

func TestFetchUserIDs_TenantCapabilityScope(t *testing.T) {
	db, mock := newMockDB(t)
	tables := Tables{Prefix: "wp_", MultiTenant: true}
	tenant := 3

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT DISTINCT u.ID FROM wp_users u INNER JOIN wp_usermeta um ON um.user_id = u.ID AND um.meta_key = ? ORDER BY u.ID ASC`,
	)).
		WithArgs("wp_3_capabilities").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(1).AddRow(5))

	ids, err := FetchUserIDs(context.Background(), db, tables, UserFilter{Tenant: &tenant})
	if err != nil {
		t.Fatalf("FetchUserIDs error: %v", err)
	}
	if len(ids) != 2 || ids[1] != 5 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestCapabilityKey(t *testing.T) {
	tables := Tables{Prefix: "wp_", MultiTenant: true}
	three := 3
	one := 1
	if got := CapabilityKey(tables, &three); got != "wp_3_capabilities" {
		t.Errorf("tenant 3: got %q", got)
	}
	if got := CapabilityKey(tables, &one); got != "wp_capabilities" {
		t.Errorf("tenant 1: got %q", got)
	}
	if got := CapabilityKey(tables, nil); got != "wp_capabilities" {
		t.Errorf("nil tenant: got %q", got)
	}
}

func TestFetchUsers_MetaMerged(t *testing.T) {
	db, mock := newMockDB(t)
	tables := Tables{Prefix: "wp_", MultiTenant: false}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM wp_users u WHERE u.ID IN (?)`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"ID", "user_login", "user_pass", "user_nicename", "user_email", "user_url",
			"user_registered", "user_activation_key", "user_status", "display_name",
		}).AddRow(7, "ana", "$P$hash", "ana", "ana@example.org", "",
			"2020-05-01 09:00:00", "", 0, "Ana"))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM wp_usermeta um WHERE um.user_id IN (?)`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "meta_key", "meta_value"}).
			AddRow(7, "first_name", "Ana").
			AddRow(7, "wp_capabilities", `a:1:{s:6:"editor";b:1;}`))

	rows, err := FetchUsers(context.Background(), db, tables, []int64{7})
	if err != nil {
		t.Fatalf("FetchUsers error: %v", err)
	}
	if len(rows) != 1 || rows[0].Login != "ana" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
	caps, ok := rows[0].Meta[1].Value.Lookup("editor")
	if rows[0].Meta[1].Key != "wp_capabilities" || !ok || caps.Scalar != "1" {
		t.Fatalf("capability meta not decoded: %#v", rows[0].Meta)
	}
}

func TestFetchAttachmentURL(t *testing.T) {
	db, mock := newMockDB(t)
	tables := Tables{Prefix: "wp_", MultiTenant: true}
	tenant := 2

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT guid FROM wp_2_posts WHERE ID = ? AND post_type = 'attachment' LIMIT 1`,
	)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"guid"}).
			AddRow("https://old.example.org/wp-content/uploads/2020/01/a.jpg"))

	url, err := FetchAttachmentURL(context.Background(), db, tables, &tenant, false, 99)
	if err != nil {
		t.Fatalf("FetchAttachmentURL error: %v", err)
	}
	if url != "https://old.example.org/wp-content/uploads/2020/01/a.jpg" {
		t.Fatalf("unexpected url: %q", url)
	}

	// missing id resolves to empty string, not an error
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT guid FROM wp_2_posts`)).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"guid"}))

	url, err = FetchAttachmentURL(context.Background(), db, tables, &tenant, false, 100)
	if err != nil || url != "" {
		t.Fatalf("expected empty url for missing id, got %q, %v", url, err)
	}
}

func TestFetchAttachments_FilePathMerged(t *testing.T) {
	db, mock := newMockDB(t)
	tables := Tables{Prefix: "wp_", MultiTenant: false}

	mock.ExpectQuery(regexp.QuoteMeta(
		`WHERE post_type = 'attachment' AND ID IN (?,?)`,
	)).
		WithArgs(int64(3), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "guid", "post_title", "post_mime_type"}).
			AddRow(3, "https://old.example.org/up/a.jpg", "a", "image/jpeg").
			AddRow(4, "https://old.example.org/up/b.pdf", "b", "application/pdf"))

	mock.ExpectQuery(regexp.QuoteMeta(
		`meta_key = '_wp_attached_file' AND post_id IN (?,?)`,
	)).
		WithArgs(int64(3), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "meta_value"}).
			AddRow(3, "2020/01/a.jpg"))

	rows, err := FetchAttachments(context.Background(), db, tables, nil, false, []int64{3, 4})
	if err != nil {
		t.Fatalf("FetchAttachments error: %v", err)
	}
	if rows[0].File != "2020/01/a.jpg" || rows[1].File != "" {
		t.Fatalf("file paths wrong: %#v", rows)
	}
}

func TestFetchEntryTerms_GroupedByEntry(t *testing.T) {
	db, mock := newMockDB(t)
	tables := Tables{Prefix: "wp_", MultiTenant: true}
	tenant := 2

	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM wp_2_term_relationships tr JOIN wp_2_term_taxonomy tx ON tx.term_taxonomy_id = tr.term_taxonomy_id JOIN wp_2_terms t ON t.term_id = tx.term_id WHERE tr.object_id IN (?,?)`,
	)).
		WithArgs(int64(100), int64(101)).
		WillReturnRows(sqlmock.NewRows([]string{
			"object_id", "term_id", "name", "slug", "term_group", "taxonomy", "description", "parent",
		}).
			AddRow(100, 10, "News", "news", 0, "category", "", 0).
			AddRow(100, 33, "golang", "golang", 0, "post_tag", "", 0).
			AddRow(101, 10, "News", "news", 0, "category", "", 0))

	got, err := FetchEntryTerms(context.Background(), db, tables, &tenant, false, []int64{100, 101})
	if err != nil {
		t.Fatalf("FetchEntryTerms error: %v", err)
	}
	if len(got[100]) != 2 || len(got[101]) != 1 {
		t.Fatalf("grouping wrong: %v", got)
	}
	if got[100][1].Taxonomy != "post_tag" || got[100][1].Slug != "golang" {
		t.Errorf("entry 100 terms: %+v", got[100])
	}
	if got[101][0].Tenant != 2 {
		t.Errorf("tenant = %d, want stamped from the filter", got[101][0].Tenant)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestFetchEntryTerms_EmptyInput(t *testing.T) {
	db, _ := newMockDB(t)
	got, err := FetchEntryTerms(context.Background(), db, Tables{Prefix: "wp_"}, nil, false, nil)
	if err != nil || got != nil {
		t.Fatalf("empty input: got (%v, %v), want (nil, nil)", got, err)
	}
}
