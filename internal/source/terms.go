// internal/source/terms.go
//
// Taxonomy term fetches.
//
// Notes
// -----
// Term ids are listed first, ordered parent ASC then id ASC, so pages tend
// to surface ancestors before descendants.  The importer does not depend on
// that order for correctness; it is a hint that keeps parent lookups warm.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// TermFilter narrows the candidate term set.
type TermFilter struct {
	Tenant     *int
	ForceBase  bool
	Taxonomies []string
	IncludeIDs []int64
	ExcludeIDs []int64
}

// TermRow is one taxonomy term with its metadata attached.
type TermRow struct {
	TermID      int64  `db:"term_id"`
	Name        string `db:"name"`
	Slug        string `db:"slug"`
	TermGroup   int64  `db:"term_group"`
	Taxonomy    string `db:"taxonomy"`
	Description string `db:"description"`
	ParentID    int64  `db:"parent"`

	Tenant int         `db:"-"`
	Meta   []MetaEntry `db:"-"`
}

// FetchTermIDs lists the distinct term ids matching the filter, parent
// first.
func FetchTermIDs(ctx context.Context, db *sqlx.DB, tables Tables, f TermFilter) ([]int64, error) {
	tt := tables.TermSet(f.Tenant, f.ForceBase)

	var (
		where []string
		args  []any
	)
	if len(f.Taxonomies) > 0 {
		where = append(where, inClause("tx.taxonomy", stringsToAny(f.Taxonomies), &args))
	}
	if len(f.IncludeIDs) > 0 {
		where = append(where, inClause("t.term_id", int64sToAny(f.IncludeIDs), &args))
	}
	if len(f.ExcludeIDs) > 0 {
		where = append(where, "NOT "+inClause("t.term_id", int64sToAny(f.ExcludeIDs), &args))
	}

	q := fmt.Sprintf(`SELECT DISTINCT t.term_id, tx.parent FROM %s t JOIN %s tx ON tx.term_id = t.term_id`,
		tt.Terms, tt.TermTaxonomy)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY tx.parent ASC, t.term_id ASC"

	type idRow struct {
		TermID int64 `db:"term_id"`
		Parent int64 `db:"parent"`
	}
	var rows []idRow
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, &QueryError{Op: "select term ids", Err: err}
	}

	seen := make(map[int64]bool, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if seen[r.TermID] {
			continue
		}
		seen[r.TermID] = true
		ids = append(ids, r.TermID)
	}
	return ids, nil
}

// FetchTerms loads one chunk of term rows by id, with metadata merged from
// a single extra round trip.
func FetchTerms(ctx context.Context, db *sqlx.DB, tables Tables, f TermFilter, ids []int64) ([]TermRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tt := tables.TermSet(f.Tenant, f.ForceBase)

	var args []any
	q := fmt.Sprintf(
		`SELECT t.term_id, t.name, t.slug, t.term_group, tx.taxonomy, tx.description, tx.parent
		   FROM %s t JOIN %s tx ON tx.term_id = t.term_id
		  WHERE %s ORDER BY tx.parent ASC, t.term_id ASC`,
		tt.Terms, tt.TermTaxonomy, inClause("t.term_id", int64sToAny(ids), &args))

	var rows []TermRow
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, &QueryError{Op: "select terms", Err: err}
	}

	tenant := 1
	if f.Tenant != nil && *f.Tenant > 1 {
		tenant = *f.Tenant
	}
	index := make(map[int64][]int, len(rows))
	for i := range rows {
		rows[i].Tenant = tenant
		index[rows[i].TermID] = append(index[rows[i].TermID], i)
	}

	var metaArgs []any
	mq := fmt.Sprintf(`SELECT term_id, meta_key, meta_value FROM %s WHERE %s ORDER BY meta_id ASC`,
		tt.TermMeta, inClause("term_id", int64sToAny(ids), &metaArgs))

	type metaRow struct {
		TermID int64  `db:"term_id"`
		Key    string `db:"meta_key"`
		Value  string `db:"meta_value"`
	}
	var metas []metaRow
	if err := db.SelectContext(ctx, &metas, mq, metaArgs...); err != nil {
		return nil, &QueryError{Op: "select term metadata", Err: err}
	}
	for _, m := range metas {
		// a term shared across taxonomies carries its metadata into each
		for _, i := range index[m.TermID] {
			rows[i].Meta = append(rows[i].Meta, MetaEntry{Key: m.Key, Value: DecodeMetaValue(m.Value)})
		}
	}
	return rows, nil
}

// FetchEntryTerms returns the terms related to each of the given entries,
// grouped by entry id, in one round trip.
func FetchEntryTerms(ctx context.Context, db *sqlx.DB, tables Tables, tenant *int, forceBase bool, entryIDs []int64) (map[int64][]TermRow, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	tt := tables.TermSet(tenant, forceBase)

	var args []any
	q := fmt.Sprintf(
		`SELECT tr.object_id, t.term_id, t.name, t.slug, t.term_group, tx.taxonomy, tx.description, tx.parent
		   FROM %s tr
		   JOIN %s tx ON tx.term_taxonomy_id = tr.term_taxonomy_id
		   JOIN %s t  ON t.term_id = tx.term_id
		  WHERE %s ORDER BY tr.object_id ASC, t.term_id ASC`,
		tt.Relationships, tt.TermTaxonomy, tt.Terms,
		inClause("tr.object_id", int64sToAny(entryIDs), &args))

	type relRow struct {
		ObjectID int64 `db:"object_id"`
		TermRow
	}
	var rows []relRow
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, &QueryError{Op: "select entry terms", Err: err}
	}

	tid := 1
	if tenant != nil && *tenant > 1 {
		tid = *tenant
	}
	out := make(map[int64][]TermRow, len(entryIDs))
	for _, r := range rows {
		r.TermRow.Tenant = tid
		out[r.ObjectID] = append(out[r.ObjectID], r.TermRow)
	}
	return out, nil
}
