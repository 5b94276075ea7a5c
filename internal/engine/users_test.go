// internal/engine/users_test.go
//
// Unit-tests for the account importer.

package engine

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
)

func userColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"ID", "user_login", "user_pass", "user_nicename", "user_email",
		"user_url", "user_registered", "user_activation_key", "user_status",
		"display_name",
	})
}

func expectUserFetch(mock sqlmock.Sqlmock, ids *sqlmock.Rows, users *sqlmock.Rows, meta *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT u.ID FROM wp_users u")).
		WillReturnRows(ids)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_users u WHERE u.ID IN")).
		WillReturnRows(users)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_usermeta um")).
		WillReturnRows(meta)
}

func userMetaColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "meta_key", "meta_value"})
}

func TestAvailableLogin_Suffixes(t *testing.T) {
	eng, _, mem := newTestEngine(t, false)
	ctx := context.Background()

	_, _ = mem.CreateUser(ctx, store.User{Login: "alice"})
	_, _ = mem.CreateUser(ctx, store.User{Login: "alice_1"})

	got, err := eng.availableLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("availableLogin: %v", err)
	}
	if got != "alice_2" {
		t.Errorf("login = %q, want \"alice_2\"", got)
	}

	got, err = eng.availableLogin(ctx, "fresh")
	if err != nil || got != "fresh" {
		t.Errorf("free login = (%q, %v), want it back untouched", got, err)
	}
}

func TestImportUsers_PasswordHashVerbatim(t *testing.T) {
	eng, mock, mem := newTestEngine(t, false)
	ctx := context.Background()

	expectUserFetch(mock,
		sqlmock.NewRows([]string{"ID"}).AddRow(5),
		userColumns().AddRow(5, "bob", "$P$BoriginalHash", "bob", "bob@example.org", "", "2021-06-01 00:00:00", "", 0, "Bob"),
		userMetaColumns())

	sum, err := eng.ImportUsers(ctx, UserOptions{})
	if err != nil {
		t.Fatalf("ImportUsers: %v", err)
	}
	if sum.Imported != 1 {
		t.Fatalf("imported = %d, want 1", sum.Imported)
	}

	u, found, _ := mem.FindUserByLogin(ctx, "bob")
	if !found {
		t.Fatal("imported account missing")
	}
	if u.PasswordHash != "$P$BoriginalHash" {
		t.Errorf("hash = %q, want the remote hash untouched", u.PasswordHash)
	}
	expectMet(t, mock)
}

func TestImportUsers_ExistingAccountRefreshedNotRenamed(t *testing.T) {
	eng, mock, mem := newTestEngine(t, false)
	ctx := context.Background()

	localID, _ := mem.CreateUser(ctx, store.User{
		Login: "carol", PasswordHash: "localhash", Email: "carol@example.org",
	})

	expectUserFetch(mock,
		sqlmock.NewRows([]string{"ID"}).AddRow(9),
		userColumns().AddRow(9, "carol", "remotehash", "carol-nice", "carol@example.org", "https://carol.example.org", "2019-01-01 00:00:00", "", 0, "Carol"),
		userMetaColumns())

	sum, err := eng.ImportUsers(ctx, UserOptions{})
	if err != nil {
		t.Fatalf("ImportUsers: %v", err)
	}
	if sum.Updated != 1 || sum.Imported != 0 {
		t.Fatalf("summary = %+v, want 1 updated", sum)
	}
	if sum.Map[9] != localID {
		t.Errorf("mapped to %d, want the existing account %d", sum.Map[9], localID)
	}

	u, _, _ := mem.FindUserByLogin(ctx, "carol")
	if u.PasswordHash != "localhash" {
		t.Errorf("hash = %q, an update must never overwrite the local secret", u.PasswordHash)
	}
	if u.NiceName != "carol-nice" || u.DisplayName != "Carol" {
		t.Errorf("user = %+v, want profile fields refreshed", u)
	}
	expectMet(t, mock)
}

func TestImportUsers_ReservedLoginSkipped(t *testing.T) {
	eng, mock, mem := newTestEngine(t, false)
	ctx := context.Background()

	expectUserFetch(mock,
		sqlmock.NewRows([]string{"ID"}).AddRow(1),
		userColumns().AddRow(1, "admin", "hash", "admin", "admin@example.org", "", "2018-01-01 00:00:00", "", 0, "Admin"),
		userMetaColumns())

	sum, err := eng.ImportUsers(ctx, UserOptions{ReservedLogins: []string{"admin"}})
	if err != nil {
		t.Fatalf("ImportUsers: %v", err)
	}
	if sum.Skipped != 1 || sum.Imported != 0 {
		t.Fatalf("summary = %+v, want the reserved login skipped", sum)
	}
	if _, found, _ := mem.FindUserByLogin(ctx, "admin"); found {
		t.Error("reserved account was imported")
	}
	expectMet(t, mock)
}

func TestImportUsers_TenantMetaDuplicatedUnderLocalPrefix(t *testing.T) {
	eng, mock, mem := newTestEngine(t, true)
	ctx := context.Background()
	tenant := 3

	// tenant scoping joins on the per-tenant capability key
	mock.ExpectQuery(regexp.QuoteMeta("INNER JOIN wp_usermeta um ON um.user_id = u.ID AND um.meta_key = ?")).
		WithArgs("wp_3_capabilities").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_users u WHERE u.ID IN")).
		WillReturnRows(userColumns().
			AddRow(4, "dave", "hash", "dave", "dave@example.org", "", "2022-01-01 00:00:00", "", 0, "Dave"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_usermeta um")).
		WillReturnRows(userMetaColumns().
			AddRow(4, "wp_3_capabilities", `a:1:{s:6:"editor";b:1;}`).
			AddRow(4, "nickname", "dave"))

	sum, err := eng.ImportUsers(ctx, UserOptions{
		Filter: source.UserFilter{Tenant: &tenant},
	})
	if err != nil {
		t.Fatalf("ImportUsers: %v", err)
	}
	if sum.Imported != 1 {
		t.Fatalf("imported = %d, want 1", sum.Imported)
	}
	localID := sum.Map[4]

	if v, ok, _ := mem.GetUserMeta(ctx, localID, "wp_3_capabilities"); !ok || v == "" {
		t.Error("original tenant-prefixed key must be preserved")
	}
	local, ok, _ := mem.GetUserMeta(ctx, localID, "wp_capabilities")
	if !ok {
		t.Fatal("capabilities not duplicated under the local prefix")
	}
	// booleans come back as flag strings after the decode/encode round trip
	if local != `a:1:{s:6:"editor";s:1:"1";}` {
		t.Errorf("wp_capabilities = %q, want the re-serialized remote value", local)
	}
	if _, ok, _ := mem.GetUserMeta(ctx, localID, SourceMetaKey); !ok {
		t.Error("remote metadata snapshot missing")
	}
	expectMet(t, mock)
}

func TestImportUsers_DryRunWritesNothing(t *testing.T) {
	eng, mock, mem := newTestEngine(t, false)
	ctx := context.Background()

	expectUserFetch(mock,
		sqlmock.NewRows([]string{"ID"}).AddRow(5),
		userColumns().AddRow(5, "bob", "hash", "bob", "bob@example.org", "", "2021-06-01 00:00:00", "", 0, "Bob"),
		userMetaColumns())

	sum, err := eng.ImportUsers(ctx, UserOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ImportUsers: %v", err)
	}
	if sum.Imported != 0 || sum.RunID != 0 {
		t.Fatalf("summary = %+v, want zero writes and no run id", sum)
	}
	if got := sum.Map[5]; got != 0 {
		t.Errorf("map[5] = %d, want 0 for a would-be create", got)
	}
	if _, found, _ := mem.FindUserByLogin(ctx, "bob"); found {
		t.Error("dry run created an account")
	}
	expectMet(t, mock)
}
