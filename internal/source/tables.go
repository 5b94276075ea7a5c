// internal/source/tables.go
//
// Tenant-aware physical table resolution.
//
// Context
// -------
// The remote WordPress install may be multi-tenant (multisite): tenant 1
// and single-site installs use `<prefix><table>`, every other tenant uses
// `<prefix><tenant>_<table>`.  The shared tables (users, usermeta) never
// carry a tenant infix.  Resolution is pure string work with no error
// path: unresolvable inputs degrade to the base-schema form, so callers
// must validate tenant existence independently.
package source

import "strconv"

// Tables resolves logical table names for one remote installation.
type Tables struct {
	Prefix      string
	MultiTenant bool
}

// TermTables bundles the four taxonomy tables that always resolve
// together.
type TermTables struct {
	Terms         string
	TermTaxonomy  string
	Relationships string
	TermMeta      string
}

// Resolve maps a logical name to its physical table.  tenant == nil,
// tenant 1, or forceBase all address the base schema.
func (t Tables) Resolve(logical string, tenant *int, forceBase bool) string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = "wp_"
	}
	if forceBase || !t.MultiTenant || tenant == nil || *tenant <= 1 {
		return prefix + logical
	}
	return prefix + strconv.Itoa(*tenant) + "_" + logical
}

// Posts resolves the entries table for a tenant.
func (t Tables) Posts(tenant *int, forceBase bool) string {
	return t.Resolve("posts", tenant, forceBase)
}

// PostMeta resolves the entry metadata table for a tenant.
func (t Tables) PostMeta(tenant *int, forceBase bool) string {
	return t.Resolve("postmeta", tenant, forceBase)
}

// Options resolves the key-value options table for a tenant.
func (t Tables) Options(tenant *int, forceBase bool) string {
	return t.Resolve("options", tenant, forceBase)
}

// TermSet resolves the taxonomy table group for a tenant.
func (t Tables) TermSet(tenant *int, forceBase bool) TermTables {
	return TermTables{
		Terms:         t.Resolve("terms", tenant, forceBase),
		TermTaxonomy:  t.Resolve("term_taxonomy", tenant, forceBase),
		Relationships: t.Resolve("term_relationships", tenant, forceBase),
		TermMeta:      t.Resolve("termmeta", tenant, forceBase),
	}
}

// Users resolves the shared users table.  Multi-tenant installs share one
// users table across every tenant.
func (t Tables) Users() string {
	return t.Resolve("users", nil, true)
}

// UserMeta resolves the shared usermeta table.
func (t Tables) UserMeta() string {
	return t.Resolve("usermeta", nil, true)
}
