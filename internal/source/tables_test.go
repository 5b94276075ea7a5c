// internal/source/tables_test.go
//
// Resolution matrix for the tenant table resolver.

package source

import "testing"

func intp(v int) *int { return &v }

func TestTables_Resolve(t *testing.T) {
	ms := Tables{Prefix: "wp_", MultiTenant: true}
	single := Tables{Prefix: "wp_", MultiTenant: false}

	cases := []struct {
		name      string
		tables    Tables
		tenant    *int
		forceBase bool
		want      string
	}{
		{"multi tenant nil", ms, nil, false, "wp_posts"},
		{"multi tenant 1", ms, intp(1), false, "wp_posts"},
		{"multi tenant 3", ms, intp(3), false, "wp_3_posts"},
		{"multi tenant 3 forced base", ms, intp(3), true, "wp_posts"},
		{"single tenant 3", single, intp(3), false, "wp_posts"},
		{"zero tenant degrades to base", ms, intp(0), false, "wp_posts"},
	}
	for _, c := range cases {
		if got := c.tables.Posts(c.tenant, c.forceBase); got != c.want {
			t.Errorf("%s: Posts() = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestTables_DefaultPrefix(t *testing.T) {
	var tbl Tables // empty prefix
	if got := tbl.Posts(nil, false); got != "wp_posts" {
		t.Fatalf("empty prefix: got %q, want wp_posts", got)
	}
}

func TestTables_CustomPrefix(t *testing.T) {
	tbl := Tables{Prefix: "legacy_", MultiTenant: true}
	if got := tbl.PostMeta(intp(7), false); got != "legacy_7_postmeta" {
		t.Fatalf("got %q", got)
	}
}

func TestTables_TermSet(t *testing.T) {
	tbl := Tables{Prefix: "wp_", MultiTenant: true}
	set := tbl.TermSet(intp(4), false)
	want := TermTables{
		Terms:         "wp_4_terms",
		TermTaxonomy:  "wp_4_term_taxonomy",
		Relationships: "wp_4_term_relationships",
		TermMeta:      "wp_4_termmeta",
	}
	if set != want {
		t.Fatalf("TermSet mismatch:\n got %+v\nwant %+v", set, want)
	}
}

func TestTables_SharedUserTables(t *testing.T) {
	tbl := Tables{Prefix: "wp_", MultiTenant: true}
	// Users never carry the tenant infix, even on multi-tenant installs.
	if got := tbl.Users(); got != "wp_users" {
		t.Errorf("Users() = %q, want wp_users", got)
	}
	if got := tbl.UserMeta(); got != "wp_usermeta" {
		t.Errorf("UserMeta() = %q, want wp_usermeta", got)
	}
}
