// internal/source/attachments.go
//
// Binary resource lookups against the remote entries table.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AttachmentRow describes one remote binary resource.
type AttachmentRow struct {
	ID       int64  `db:"ID"`
	GUID     string `db:"guid"`
	Title    string `db:"post_title"`
	MimeType string `db:"post_mime_type"`

	// relative storage path from _wp_attached_file, when requested
	File string `db:"-"`
}

// FetchAttachmentURL resolves a single resource id to its public URL.
// Returns "" without error when the id does not exist as a resource.
func FetchAttachmentURL(ctx context.Context, db *sqlx.DB, tables Tables, tenant *int, forceBase bool, id int64) (string, error) {
	if id <= 0 {
		return "", nil
	}
	q := fmt.Sprintf(`SELECT guid FROM %s WHERE ID = ? AND post_type = 'attachment' LIMIT 1`,
		tables.Posts(tenant, forceBase))

	var guid string
	if err := db.GetContext(ctx, &guid, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", &QueryError{Op: "select attachment url", Err: err}
	}
	return guid, nil
}

// FetchAttachments loads resource rows by id, with the stored file path
// merged from metadata.
func FetchAttachments(ctx context.Context, db *sqlx.DB, tables Tables, tenant *int, forceBase bool, ids []int64) ([]AttachmentRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var args []any
	q := fmt.Sprintf(
		`SELECT ID, guid, post_title, post_mime_type FROM %s WHERE post_type = 'attachment' AND %s ORDER BY ID ASC`,
		tables.Posts(tenant, forceBase), inClause("ID", int64sToAny(ids), &args))

	var rows []AttachmentRow
	if err := db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, &QueryError{Op: "select attachments", Err: err}
	}
	if len(rows) == 0 {
		return rows, nil
	}

	index := make(map[int64]int, len(rows))
	present := make([]int64, 0, len(rows))
	for i, r := range rows {
		index[r.ID] = i
		present = append(present, r.ID)
	}

	var metaArgs []any
	mq := fmt.Sprintf(
		`SELECT post_id, meta_value FROM %s WHERE meta_key = '_wp_attached_file' AND %s`,
		tables.PostMeta(tenant, forceBase), inClause("post_id", int64sToAny(present), &metaArgs))

	type fileRow struct {
		PostID int64  `db:"post_id"`
		Value  string `db:"meta_value"`
	}
	var files []fileRow
	if err := db.SelectContext(ctx, &files, mq, metaArgs...); err != nil {
		return nil, &QueryError{Op: "select attachment files", Err: err}
	}
	for _, fr := range files {
		if i, ok := index[fr.PostID]; ok {
			rows[i].File = fr.Value
		}
	}
	return rows, nil
}
