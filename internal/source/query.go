// internal/source/query.go
//
// Parameterized fetches against the remote entries table.
//
// Context
// -------
// One call builds one SELECT with bound parameters for every filter value.
// The only strings ever inlined are identifiers that passed an allow-list:
// the ORDER BY column and the taxonomy lookup field.  Metadata rides in a
// second query (one round trip for entities, one for metadata) and is
// merged in memory, keeping the query count bounded no matter the chunk
// size.
//
// Failure surfaces as *QueryError; the caller decides whether to abort the
// run or skip the chunk.
package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// AnyStatus is the sentinel that expands to the full visible status set,
// mirroring the source platform's `any` query flag.
const AnyStatus = "any"

var anyStatusSet = []string{"publish", "pending", "draft", "future", "private"}

// allowed ORDER BY columns; anything else falls back to the default.
var allowedOrderBy = map[string]bool{
	"ID":            true,
	"post_date":     true,
	"post_title":    true,
	"post_modified": true,
}

// allowed taxonomy lookup fields (inlined as identifiers after
// validation).
var allowedTaxFields = map[string]bool{
	"slug":    true,
	"name":    true,
	"term_id": true,
}

// TaxClause filters entries by membership in a taxonomy.
type TaxClause struct {
	Taxonomy string
	Field    string // slug, name, or term_id
	Terms    []string
}

// Filter describes one fetch.  Zero values mean "no constraint".
type Filter struct {
	Tenant    *int
	ForceBase bool

	Kinds    []string
	Statuses []string

	IncludeIDs []int64
	ExcludeIDs []int64
	IDGte      int64
	IDLte      int64

	// Epoch seconds or a formatted timestamp; normalized to UTC and
	// compared against the entry's UTC modified column.
	ModifiedAfter  string
	ModifiedBefore string

	Search string

	Taxonomies  []TaxClause
	TaxRelation string // "AND" (default) or "OR"

	OrderBy string
	Order   string // ASC or DESC
	Limit   int
	Offset  int

	WithMeta bool
	MetaKeys []string
}

// TenantID returns the effective tenant, defaulting to the base tenant.
func (f Filter) TenantID() int {
	if f.Tenant == nil || *f.Tenant < 1 {
		return 1
	}
	return *f.Tenant
}

// MetaEntry is one decoded metadata row, order preserved.
type MetaEntry struct {
	Key   string
	Value Value
}

// Row is one entry fetched from the remote store.  Immutable once fetched;
// it lives for the duration of one chunk.
type Row struct {
	ID            int64  `db:"ID"`
	AuthorID      int64  `db:"post_author"`
	CreatedAt     string `db:"post_date"`
	CreatedAtUTC  string `db:"post_date_gmt"`
	Body          string `db:"post_content"`
	Title         string `db:"post_title"`
	Excerpt       string `db:"post_excerpt"`
	Status        string `db:"post_status"`
	Slug          string `db:"post_name"`
	ModifiedAt    string `db:"post_modified"`
	ModifiedAtUTC string `db:"post_modified_gmt"`
	ParentID      int64  `db:"post_parent"`
	GUID          string `db:"guid"`
	Kind          string `db:"post_type"`
	MimeType      string `db:"post_mime_type"`

	Tenant int         `db:"-"`
	Meta   []MetaEntry `db:"-"`
}

// MetaValue returns the first metadata entry for key.
func (r Row) MetaValue(key string) (Value, bool) {
	for _, m := range r.Meta {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

const rowColumns = `ID, post_author, post_date, post_date_gmt, post_content,
       post_title, post_excerpt, post_status, post_name, post_modified,
       post_modified_gmt, post_parent, guid, post_type, post_mime_type`

// FetchPosts returns one page of entries matching the filter, with
// metadata attached when requested.
func FetchPosts(ctx context.Context, db *sqlx.DB, tables Tables, f Filter) ([]Row, error) {
	table := tables.Posts(f.Tenant, f.ForceBase)
	termTables := tables.TermSet(f.Tenant, f.ForceBase)

	var (
		where []string
		args  []any
	)

	kinds := f.Kinds
	if len(kinds) == 0 {
		kinds = []string{"post"}
	}
	where = append(where, inClause("post_type", stringsToAny(kinds), &args))

	statuses := expandStatuses(f.Statuses)
	where = append(where, inClause("post_status", stringsToAny(statuses), &args))

	if len(f.IncludeIDs) > 0 {
		where = append(where, inClause("ID", int64sToAny(f.IncludeIDs), &args))
	}
	if len(f.ExcludeIDs) > 0 {
		where = append(where, "NOT "+inClause("ID", int64sToAny(f.ExcludeIDs), &args))
	}
	if f.IDGte > 0 {
		where = append(where, "ID >= ?")
		args = append(args, f.IDGte)
	}
	if f.IDLte > 0 {
		where = append(where, "ID <= ?")
		args = append(args, f.IDLte)
	}

	hasModified := false
	if f.ModifiedAfter != "" {
		ts, err := normalizeUTC(f.ModifiedAfter)
		if err != nil {
			return nil, &QueryError{Op: "modified_after", Err: err}
		}
		where = append(where, "post_modified_gmt >= ?")
		args = append(args, ts)
		hasModified = true
	}
	if f.ModifiedBefore != "" {
		ts, err := normalizeUTC(f.ModifiedBefore)
		if err != nil {
			return nil, &QueryError{Op: "modified_before", Err: err}
		}
		where = append(where, "post_modified_gmt <= ?")
		args = append(args, ts)
		hasModified = true
	}

	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		where = append(where, "(post_title LIKE ? OR post_content LIKE ?)")
		args = append(args, like, like)
	}

	if len(f.Taxonomies) > 0 {
		clause, err := taxonomyClause(table, termTables, f.Taxonomies, f.TaxRelation, &args)
		if err != nil {
			return nil, err
		}
		where = append(where, clause)
	}

	orderBy, order := resolveOrder(f, hasModified)

	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		rowColumns, table, strings.Join(where, " AND "), orderBy, order, limit, offset)

	var rows []Row
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, &QueryError{Op: "select entries", Err: err}
	}

	tenant := f.TenantID()
	for i := range rows {
		rows[i].Tenant = tenant
	}

	if f.WithMeta && len(rows) > 0 {
		if err := attachMeta(ctx, db, tables, f, rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// attachMeta merges the metadata round trip into the fetched rows.
func attachMeta(ctx context.Context, db *sqlx.DB, tables Tables, f Filter, rows []Row) error {
	ids := make([]any, len(rows))
	index := make(map[int64]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		index[r.ID] = i
	}

	var args []any
	q := fmt.Sprintf(`SELECT post_id, meta_key, meta_value FROM %s WHERE %s`,
		tables.PostMeta(f.Tenant, f.ForceBase), inClause("post_id", ids, &args))

	if len(f.MetaKeys) > 0 {
		q += " AND " + inClause("meta_key", stringsToAny(f.MetaKeys), &args)
	}
	q += " ORDER BY meta_id ASC"

	type metaRow struct {
		PostID int64  `db:"post_id"`
		Key    string `db:"meta_key"`
		Value  string `db:"meta_value"`
	}
	var metas []metaRow
	if err := db.SelectContext(ctx, &metas, q, args...); err != nil {
		return &QueryError{Op: "select metadata", Err: err}
	}

	for _, m := range metas {
		i, ok := index[m.PostID]
		if !ok {
			continue
		}
		rows[i].Meta = append(rows[i].Meta, MetaEntry{Key: m.Key, Value: DecodeMetaValue(m.Value)})
	}
	return nil
}

func taxonomyClause(postsTable string, tt TermTables, clauses []TaxClause, relation string, args *[]any) (string, error) {
	rel := " AND "
	if strings.EqualFold(relation, "OR") {
		rel = " OR "
	}

	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		field := c.Field
		if field == "" {
			field = "slug"
		}
		if !allowedTaxFields[field] {
			return "", &QueryError{Op: "taxonomy filter", Err: fmt.Errorf("field %q not allowed", field)}
		}
		if c.Taxonomy == "" || len(c.Terms) == 0 {
			return "", &QueryError{Op: "taxonomy filter", Err: fmt.Errorf("empty taxonomy clause")}
		}

		*args = append(*args, c.Taxonomy)
		sub := fmt.Sprintf(
			`EXISTS (SELECT 1 FROM %s tr JOIN %s tx ON tx.term_taxonomy_id = tr.term_taxonomy_id JOIN %s t ON t.term_id = tx.term_id WHERE tr.object_id = %s.ID AND tx.taxonomy = ? AND t.%s %s)`,
			tt.Relationships, tt.TermTaxonomy, tt.Terms, postsTable, field,
			inClause("", stringsToAny(c.Terms), args))
		parts = append(parts, sub)
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, rel) + ")", nil
}

func resolveOrder(f Filter, hasModified bool) (col, dir string) {
	col = f.OrderBy
	if !allowedOrderBy[col] {
		// Incremental syncs page on the modified clock so repeated runs
		// see a stable order; everything else pages on publish date.
		if hasModified {
			col = "post_modified"
		} else {
			col = "post_date"
		}
	}
	dir = "DESC"
	if strings.EqualFold(f.Order, "ASC") || (f.OrderBy == "" && hasModified) {
		dir = "ASC"
	}
	return col, dir
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// inClause appends values to args and returns `field IN (?,…)`.  With an
// empty field it returns just `IN (?,…)` for use inside a larger clause.
func inClause(field string, values []any, args *[]any) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = "?"
		*args = append(*args, v)
	}
	if field == "" {
		return "IN (" + strings.Join(ph, ",") + ")"
	}
	return field + " IN (" + strings.Join(ph, ",") + ")"
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func int64sToAny(in []int64) []any {
	out := make([]any, len(in))
	for i, n := range in {
		out[i] = n
	}
	return out
}

func expandStatuses(in []string) []string {
	if len(in) == 0 {
		return []string{"publish"}
	}
	for _, s := range in {
		if s == AnyStatus {
			return anyStatusSet
		}
	}
	return in
}

// escapeLike escapes LIKE wildcards so free-text search matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// normalizeUTC accepts epoch seconds or a handful of timestamp layouts and
// returns the MySQL DATETIME string in UTC.
func normalizeUTC(v string) (string, error) {
	v = strings.TrimSpace(v)
	if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04:05"), nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format("2006-01-02 15:04:05"), nil
		}
	}
	return "", fmt.Errorf("unrecognized timestamp %q", v)
}
