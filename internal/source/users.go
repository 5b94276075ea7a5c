// internal/source/users.go
//
// Account fetches.  User tables are shared across tenants; tenant scoping
// happens through the per-tenant capability metadata key.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// UserFilter narrows the candidate account set.
type UserFilter struct {
	// Tenant > 1 restricts the listing to accounts holding a capability
	// row for that tenant.
	Tenant     *int
	IncludeIDs []int64
	ExcludeIDs []int64
}

// UserRow is one account row with its metadata attached.
type UserRow struct {
	ID            int64  `db:"ID"`
	Login         string `db:"user_login"`
	PasswordHash  string `db:"user_pass"`
	NiceName      string `db:"user_nicename"`
	Email         string `db:"user_email"`
	URL           string `db:"user_url"`
	RegisteredAt  string `db:"user_registered"`
	ActivationKey string `db:"user_activation_key"`
	Status        int64  `db:"user_status"`
	DisplayName   string `db:"display_name"`

	Meta []MetaEntry `db:"-"`
}

// CapabilityKey returns the per-tenant capability metadata key, e.g.
// "wp_3_capabilities" for tenant 3 or "wp_capabilities" for the base
// tenant.
func CapabilityKey(tables Tables, tenant *int) string {
	if tenant == nil || *tenant <= 1 {
		return tables.Prefix + "capabilities"
	}
	return fmt.Sprintf("%s%d_capabilities", tables.Prefix, *tenant)
}

// FetchUserIDs lists the account ids matching the filter in ascending
// order.
func FetchUserIDs(ctx context.Context, db *sqlx.DB, tables Tables, f UserFilter) ([]int64, error) {
	var (
		where []string
		args  []any
	)

	q := fmt.Sprintf(`SELECT DISTINCT u.ID FROM %s u`, tables.Users())
	if f.Tenant != nil && *f.Tenant > 1 {
		q += fmt.Sprintf(` INNER JOIN %s um ON um.user_id = u.ID AND um.meta_key = ?`, tables.UserMeta())
		args = append(args, CapabilityKey(tables, f.Tenant))
	}
	if len(f.IncludeIDs) > 0 {
		where = append(where, inClause("u.ID", int64sToAny(f.IncludeIDs), &args))
	}
	if len(f.ExcludeIDs) > 0 {
		where = append(where, "NOT "+inClause("u.ID", int64sToAny(f.ExcludeIDs), &args))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY u.ID ASC"

	var ids []int64
	if err := db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, &QueryError{Op: "select user ids", Err: err}
	}
	return ids, nil
}

// FetchUsers loads one chunk of account rows by id, metadata included.
func FetchUsers(ctx context.Context, db *sqlx.DB, tables Tables, ids []int64) ([]UserRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var args []any
	q := fmt.Sprintf(
		`SELECT u.ID, u.user_login, u.user_pass, u.user_nicename, u.user_email, u.user_url,
		        u.user_registered, u.user_activation_key, u.user_status, u.display_name
		   FROM %s u WHERE %s ORDER BY u.ID ASC`,
		tables.Users(), inClause("u.ID", int64sToAny(ids), &args))

	var rows []UserRow
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, &QueryError{Op: "select users", Err: err}
	}

	index := make(map[int64]int, len(rows))
	for i := range rows {
		index[rows[i].ID] = i
	}

	var metaArgs []any
	mq := fmt.Sprintf(
		`SELECT um.user_id, um.meta_key, um.meta_value FROM %s um WHERE %s ORDER BY um.umeta_id ASC`,
		tables.UserMeta(), inClause("um.user_id", int64sToAny(ids), &metaArgs))

	type metaRow struct {
		UserID int64  `db:"user_id"`
		Key    string `db:"meta_key"`
		Value  string `db:"meta_value"`
	}
	var metas []metaRow
	if err := db.SelectContext(ctx, &metas, mq, metaArgs...); err != nil {
		return nil, &QueryError{Op: "select user metadata", Err: err}
	}
	for _, m := range metas {
		if i, ok := index[m.UserID]; ok {
			rows[i].Meta = append(rows[i].Meta, MetaEntry{Key: m.Key, Value: DecodeMetaValue(m.Value)})
		}
	}
	return rows, nil
}
