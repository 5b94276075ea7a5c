// internal/store/mysql.go
//
// MySQL-backed Store against a standard single-site content schema.
//
// Context
// -------
// The local side of a migration is itself a MySQL content database.  This
// implementation speaks the same table layout the remote fetchers read,
// minus the tenant prefixing: one fixed prefix, one site.
//
// Notes
// -----
// • Metadata writes are select-then-insert-or-update because meta keys are
//   not unique columns in this schema.
// • Registered binary files land under UploadsDir/YYYY/MM and are exposed
//   at BaseURL + relative path.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQL implements Store over a sqlx handle.
type SQL struct {
	db     *sqlx.DB
	prefix string

	// UploadsDir receives registered binary files.
	UploadsDir string
	// BaseURL prefixes public resource URLs, e.g.
	// "https://new.example.org/wp-content/uploads/".
	BaseURL string

	// Taxonomies restricts TaxonomyExists when non-empty; with no entries
	// any taxonomy already present in the schema counts as registered.
	Taxonomies []string
}

// NewSQL returns a Store bound to db with the given table prefix
// (typically "wp_").
func NewSQL(db *sqlx.DB, prefix string) *SQL {
	if prefix == "" {
		prefix = "wp_"
	}
	return &SQL{db: db, prefix: prefix}
}

func (s *SQL) table(name string) string { return s.prefix + name }

/*──────────────────────────── entries ─────────────────────────────────────*/

func (s *SQL) CreateEntity(ctx context.Context, e Entity) (int64, error) {
	q := fmt.Sprintf(`INSERT INTO %s
		(post_author, post_date, post_date_gmt, post_content, post_title,
		 post_excerpt, post_status, post_name, post_modified,
		 post_modified_gmt, post_parent, guid, post_type, post_mime_type,
		 comment_status, ping_status, to_ping, pinged, post_content_filtered)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,'closed','closed','','','')`,
		s.table("posts"))
	res, err := s.db.ExecContext(ctx, q,
		e.AuthorID, e.CreatedAt, e.CreatedAtUTC, e.Body, e.Title,
		e.Excerpt, e.Status, e.Slug, e.ModifiedAt, e.ModifiedAtUTC,
		e.ParentID, "", e.Kind, e.MimeType)
	if err != nil {
		return 0, fmt.Errorf("store: create entity: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQL) UpdateEntity(ctx context.Context, e Entity) error {
	q := fmt.Sprintf(`UPDATE %s SET post_author = ?, post_date = ?,
		post_date_gmt = ?, post_content = ?, post_title = ?,
		post_excerpt = ?, post_status = ?, post_name = ?,
		post_modified = ?, post_modified_gmt = ?, post_parent = ?,
		post_type = ?, post_mime_type = ? WHERE ID = ?`,
		s.table("posts"))
	_, err := s.db.ExecContext(ctx, q,
		e.AuthorID, e.CreatedAt, e.CreatedAtUTC, e.Body, e.Title,
		e.Excerpt, e.Status, e.Slug, e.ModifiedAt, e.ModifiedAtUTC,
		e.ParentID, e.Kind, e.MimeType, e.ID)
	if err != nil {
		return fmt.Errorf("store: update entity %d: %w", e.ID, err)
	}
	return nil
}

func (s *SQL) GetEntity(ctx context.Context, id int64) (Entity, bool, error) {
	q := fmt.Sprintf(`SELECT ID, post_author, post_date, post_date_gmt,
		post_content, post_title, post_excerpt, post_status, post_name,
		post_modified, post_modified_gmt, post_parent, post_type,
		post_mime_type FROM %s WHERE ID = ?`, s.table("posts"))

	var row struct {
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
		Kind          string `db:"post_type"`
		MimeType      string `db:"post_mime_type"`
	}
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entity{}, false, nil
		}
		return Entity{}, false, fmt.Errorf("store: get entity %d: %w", id, err)
	}
	return Entity{
		ID: row.ID, Kind: row.Kind, Status: row.Status, Title: row.Title,
		Body: row.Body, Excerpt: row.Excerpt, Slug: row.Slug,
		CreatedAt: row.CreatedAt, CreatedAtUTC: row.CreatedAtUTC,
		ModifiedAt: row.ModifiedAt, ModifiedAtUTC: row.ModifiedAtUTC,
		ParentID: row.ParentID, AuthorID: row.AuthorID, MimeType: row.MimeType,
	}, true, nil
}

func (s *SQL) SetEntityMeta(ctx context.Context, id int64, key, value string) error {
	return s.setMeta(ctx, s.table("postmeta"), "meta_id", "post_id", id, key, value)
}

func (s *SQL) GetEntityMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	return s.getMeta(ctx, s.table("postmeta"), "post_id", id, key)
}

func (s *SQL) DeleteEntityMeta(ctx context.Context, id int64, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE post_id = ? AND meta_key = ?`, s.table("postmeta"))
	if _, err := s.db.ExecContext(ctx, q, id, key); err != nil {
		return fmt.Errorf("store: delete entity meta: %w", err)
	}
	return nil
}

func (s *SQL) FindEntityBySourceKey(ctx context.Context, kind EntityKind, sourceID int64, tenant int) (int64, bool, error) {
	typeClause := "p.post_type <> 'attachment'"
	if kind == KindAttachment {
		typeClause = "p.post_type = 'attachment'"
	}
	q := fmt.Sprintf(`SELECT p.ID FROM %s p
		JOIN %s ms ON ms.post_id = p.ID AND ms.meta_key = ? AND ms.meta_value = ?
		JOIN %s mt ON mt.post_id = p.ID AND mt.meta_key = ? AND mt.meta_value = ?
		WHERE %s LIMIT 1`,
		s.table("posts"), s.table("postmeta"), s.table("postmeta"), typeClause)

	var id int64
	err := s.db.GetContext(ctx, &id, q,
		SourceIDKey, strconv.FormatInt(sourceID, 10),
		SourceTenantKey, strconv.Itoa(tenant))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: find entity by source key: %w", err)
	}
	return id, true, nil
}

func (s *SQL) FindEntityByMeta(ctx context.Context, kind string, key, value string) (int64, bool, error) {
	q := fmt.Sprintf(`SELECT p.ID FROM %s p
		JOIN %s m ON m.post_id = p.ID AND m.meta_key = ? AND m.meta_value = ?`,
		s.table("posts"), s.table("postmeta"))
	args := []any{key, value}
	if kind != "" {
		q += " WHERE p.post_type = ?"
		args = append(args, kind)
	}
	q += " LIMIT 1"

	var id int64
	err := s.db.GetContext(ctx, &id, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: find entity by meta: %w", err)
	}
	return id, true, nil
}

func (s *SQL) AttachBinaryResource(ctx context.Context, r BinaryResource) (int64, error) {
	rel := path.Join(time.Now().Format("2006/01"), r.FileName)
	dst := filepath.Join(s.UploadsDir, filepath.FromSlash(rel))
	if err := copyFile(r.LocalFile, dst); err != nil {
		return 0, fmt.Errorf("store: place binary file: %w", err)
	}

	now := time.Now()
	nowLocal := now.Format("2006-01-02 15:04:05")
	nowUTC := now.UTC().Format("2006-01-02 15:04:05")
	guid := s.BaseURL + rel

	q := fmt.Sprintf(`INSERT INTO %s
		(post_author, post_date, post_date_gmt, post_content, post_title,
		 post_excerpt, post_status, post_name, post_modified,
		 post_modified_gmt, post_parent, guid, post_type, post_mime_type,
		 comment_status, ping_status, to_ping, pinged, post_content_filtered)
		VALUES (0,?,?,'',?,'','inherit',?,?,?,?,?,'attachment',?,
		        'closed','closed','','','')`,
		s.table("posts"))
	res, err := s.db.ExecContext(ctx, q,
		nowLocal, nowUTC, r.Title, r.FileName, nowLocal, nowUTC,
		r.ParentID, guid, r.MimeType)
	if err != nil {
		return 0, fmt.Errorf("store: register resource: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := s.SetEntityMeta(ctx, id, "_wp_attached_file", rel); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQL) ResourceURL(ctx context.Context, id int64) (string, bool, error) {
	q := fmt.Sprintf(`SELECT guid FROM %s WHERE ID = ? AND post_type = 'attachment'`,
		s.table("posts"))
	var guid string
	err := s.db.GetContext(ctx, &guid, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: resource url: %w", err)
	}
	return guid, true, nil
}

/*──────────────────────────── terms ───────────────────────────────────────*/

func (s *SQL) TaxonomyExists(ctx context.Context, taxonomy string) (bool, error) {
	if len(s.Taxonomies) > 0 {
		for _, t := range s.Taxonomies {
			if t == taxonomy {
				return true, nil
			}
		}
		return false, nil
	}
	q := fmt.Sprintf(`SELECT 1 FROM %s WHERE taxonomy = ? LIMIT 1`, s.table("term_taxonomy"))
	var one int
	err := s.db.GetContext(ctx, &one, q, taxonomy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: taxonomy exists: %w", err)
	}
	return true, nil
}

const termSelect = `SELECT t.term_id, t.name, t.slug, tx.taxonomy,
	tx.description, tx.parent FROM %s t
	JOIN %s tx ON tx.term_id = t.term_id WHERE tx.taxonomy = ? AND %s LIMIT 1`

func (s *SQL) findTerm(ctx context.Context, taxonomy, col, val string) (Term, bool, error) {
	q := fmt.Sprintf(termSelect, s.table("terms"), s.table("term_taxonomy"), "t."+col+" = ?")
	var row struct {
		ID          int64  `db:"term_id"`
		Name        string `db:"name"`
		Slug        string `db:"slug"`
		Taxonomy    string `db:"taxonomy"`
		Description string `db:"description"`
		ParentID    int64  `db:"parent"`
	}
	err := s.db.GetContext(ctx, &row, q, taxonomy, val)
	if errors.Is(err, sql.ErrNoRows) {
		return Term{}, false, nil
	}
	if err != nil {
		return Term{}, false, fmt.Errorf("store: find term: %w", err)
	}
	return Term{ID: row.ID, Taxonomy: row.Taxonomy, Name: row.Name,
		Slug: row.Slug, Description: row.Description, ParentID: row.ParentID}, true, nil
}

func (s *SQL) FindTermBySlug(ctx context.Context, taxonomy, slug string) (Term, bool, error) {
	return s.findTerm(ctx, taxonomy, "slug", slug)
}

func (s *SQL) FindTermByName(ctx context.Context, taxonomy, name string) (Term, bool, error) {
	return s.findTerm(ctx, taxonomy, "name", name)
}

func (s *SQL) CreateTerm(ctx context.Context, t Term) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, slug, term_group) VALUES (?,?,0)`, s.table("terms")),
		t.Name, t.Slug)
	if err != nil {
		return 0, fmt.Errorf("store: create term: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (term_id, taxonomy, description, parent, count)
			VALUES (?,?,?,?,0)`, s.table("term_taxonomy")),
		id, t.Taxonomy, t.Description, t.ParentID)
	if err != nil {
		return 0, fmt.Errorf("store: create term taxonomy: %w", err)
	}
	return id, nil
}

func (s *SQL) UpdateTerm(ctx context.Context, t Term) error {
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET name = ?, slug = ? WHERE term_id = ?`, s.table("terms")),
		t.Name, t.Slug, t.ID); err != nil {
		return fmt.Errorf("store: update term %d: %w", t.ID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET description = ?, parent = ? WHERE term_id = ? AND taxonomy = ?`,
			s.table("term_taxonomy")),
		t.Description, t.ParentID, t.ID, t.Taxonomy); err != nil {
		return fmt.Errorf("store: update term taxonomy %d: %w", t.ID, err)
	}
	return nil
}

func (s *SQL) SetTermMeta(ctx context.Context, id int64, key, value string) error {
	return s.setMeta(ctx, s.table("termmeta"), "meta_id", "term_id", id, key, value)
}

func (s *SQL) GetTermMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	return s.getMeta(ctx, s.table("termmeta"), "term_id", id, key)
}

func (s *SQL) FindTermBySourceKey(ctx context.Context, sourceID int64, tenant int) (int64, bool, error) {
	q := fmt.Sprintf(`SELECT ms.term_id FROM %s ms
		JOIN %s mt ON mt.term_id = ms.term_id
		WHERE ms.meta_key = ? AND ms.meta_value = ?
		  AND mt.meta_key = ? AND mt.meta_value = ? LIMIT 1`,
		s.table("termmeta"), s.table("termmeta"))
	var id int64
	err := s.db.GetContext(ctx, &id, q,
		SourceIDKey, strconv.FormatInt(sourceID, 10),
		SourceTenantKey, strconv.Itoa(tenant))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: find term by source key: %w", err)
	}
	return id, true, nil
}

func (s *SQL) termTaxonomyID(ctx context.Context, termID int64, taxonomy string) (int64, error) {
	q := fmt.Sprintf(`SELECT term_taxonomy_id FROM %s WHERE term_id = ? AND taxonomy = ?`,
		s.table("term_taxonomy"))
	var id int64
	if err := s.db.GetContext(ctx, &id, q, termID, taxonomy); err != nil {
		return 0, fmt.Errorf("store: term taxonomy id: %w", err)
	}
	return id, nil
}

func (s *SQL) AssignTerms(ctx context.Context, entityID int64, taxonomy string, termIDs []int64, replace bool) error {
	if replace {
		q := fmt.Sprintf(`DELETE tr FROM %s tr
			JOIN %s tx ON tx.term_taxonomy_id = tr.term_taxonomy_id
			WHERE tr.object_id = ? AND tx.taxonomy = ?`,
			s.table("term_relationships"), s.table("term_taxonomy"))
		if _, err := s.db.ExecContext(ctx, q, entityID, taxonomy); err != nil {
			return fmt.Errorf("store: clear term relationships: %w", err)
		}
	}
	for _, termID := range termIDs {
		ttID, err := s.termTaxonomyID(ctx, termID, taxonomy)
		if err != nil {
			return err
		}
		q := fmt.Sprintf(`INSERT IGNORE INTO %s (object_id, term_taxonomy_id, term_order)
			VALUES (?,?,0)`, s.table("term_relationships"))
		if _, err := s.db.ExecContext(ctx, q, entityID, ttID); err != nil {
			return fmt.Errorf("store: assign term %d: %w", termID, err)
		}
	}
	return nil
}

func (s *SQL) RemoveTerms(ctx context.Context, entityID int64, taxonomy string, termIDs []int64) error {
	for _, termID := range termIDs {
		ttID, err := s.termTaxonomyID(ctx, termID, taxonomy)
		if err != nil {
			return err
		}
		q := fmt.Sprintf(`DELETE FROM %s WHERE object_id = ? AND term_taxonomy_id = ?`,
			s.table("term_relationships"))
		if _, err := s.db.ExecContext(ctx, q, entityID, ttID); err != nil {
			return fmt.Errorf("store: remove term %d: %w", termID, err)
		}
	}
	return nil
}

func (s *SQL) EntityTerms(ctx context.Context, entityID int64, taxonomy string) ([]int64, error) {
	q := fmt.Sprintf(`SELECT tx.term_id FROM %s tr
		JOIN %s tx ON tx.term_taxonomy_id = tr.term_taxonomy_id
		WHERE tr.object_id = ? AND tx.taxonomy = ? ORDER BY tx.term_id ASC`,
		s.table("term_relationships"), s.table("term_taxonomy"))
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, q, entityID, taxonomy); err != nil {
		return nil, fmt.Errorf("store: entity terms: %w", err)
	}
	return ids, nil
}

/*──────────────────────────── users ───────────────────────────────────────*/

const userSelect = `SELECT ID, user_login, user_pass, user_nicename,
	user_email, user_url, user_registered, display_name FROM %s WHERE %s LIMIT 1`

func (s *SQL) findUser(ctx context.Context, col, val string) (User, bool, error) {
	q := fmt.Sprintf(userSelect, s.table("users"), col+" = ?")
	var row struct {
		ID           int64  `db:"ID"`
		Login        string `db:"user_login"`
		PasswordHash string `db:"user_pass"`
		NiceName     string `db:"user_nicename"`
		Email        string `db:"user_email"`
		URL          string `db:"user_url"`
		RegisteredAt string `db:"user_registered"`
		DisplayName  string `db:"display_name"`
	}
	err := s.db.GetContext(ctx, &row, q, val)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("store: find user: %w", err)
	}
	return User{ID: row.ID, Login: row.Login, PasswordHash: row.PasswordHash,
		NiceName: row.NiceName, Email: row.Email, URL: row.URL,
		RegisteredAt: row.RegisteredAt, DisplayName: row.DisplayName}, true, nil
}

func (s *SQL) FindUserByLogin(ctx context.Context, login string) (User, bool, error) {
	return s.findUser(ctx, "user_login", login)
}

func (s *SQL) FindUserByEmail(ctx context.Context, email string) (User, bool, error) {
	return s.findUser(ctx, "user_email", email)
}

func (s *SQL) CreateUser(ctx context.Context, u User) (int64, error) {
	q := fmt.Sprintf(`INSERT INTO %s
		(user_login, user_pass, user_nicename, user_email, user_url,
		 user_registered, user_activation_key, user_status, display_name)
		VALUES (?,?,?,?,?,?,'',0,?)`, s.table("users"))
	res, err := s.db.ExecContext(ctx, q,
		u.Login, u.PasswordHash, u.NiceName, u.Email, u.URL,
		u.RegisteredAt, u.DisplayName)
	if err != nil {
		return 0, fmt.Errorf("store: create user: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQL) UpdateUser(ctx context.Context, u User) error {
	// login and password are never rewritten on updates
	q := fmt.Sprintf(`UPDATE %s SET user_nicename = ?, user_email = ?,
		user_url = ?, display_name = ? WHERE ID = ?`, s.table("users"))
	if _, err := s.db.ExecContext(ctx, q,
		u.NiceName, u.Email, u.URL, u.DisplayName, u.ID); err != nil {
		return fmt.Errorf("store: update user %d: %w", u.ID, err)
	}
	return nil
}

func (s *SQL) SetUserMeta(ctx context.Context, id int64, key, value string) error {
	return s.setMeta(ctx, s.table("usermeta"), "umeta_id", "user_id", id, key, value)
}

func (s *SQL) GetUserMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	return s.getMeta(ctx, s.table("usermeta"), "user_id", id, key)
}

func (s *SQL) FindUserBySourceKey(ctx context.Context, sourceID int64, tenant int) (int64, bool, error) {
	q := fmt.Sprintf(`SELECT ms.user_id FROM %s ms
		JOIN %s mt ON mt.user_id = ms.user_id
		WHERE ms.meta_key = ? AND ms.meta_value = ?
		  AND mt.meta_key = ? AND mt.meta_value = ? LIMIT 1`,
		s.table("usermeta"), s.table("usermeta"))
	var id int64
	err := s.db.GetContext(ctx, &id, q,
		SourceIDKey, strconv.FormatInt(sourceID, 10),
		SourceTenantKey, strconv.Itoa(tenant))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: find user by source key: %w", err)
	}
	return id, true, nil
}

/*──────────────────────────── options ─────────────────────────────────────*/

func (s *SQL) GetOption(ctx context.Context, name string) (string, bool, error) {
	q := fmt.Sprintf(`SELECT option_value FROM %s WHERE option_name = ?`, s.table("options"))
	var v string
	err := s.db.GetContext(ctx, &v, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get option %q: %w", name, err)
	}
	return v, true, nil
}

func (s *SQL) SetOption(ctx context.Context, name, value string) error {
	q := fmt.Sprintf(`INSERT INTO %s (option_name, option_value, autoload)
		VALUES (?,?,'no') ON DUPLICATE KEY UPDATE option_value = VALUES(option_value)`,
		s.table("options"))
	if _, err := s.db.ExecContext(ctx, q, name, value); err != nil {
		return fmt.Errorf("store: set option %q: %w", name, err)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func (s *SQL) setMeta(ctx context.Context, table, idCol, ownerCol string, owner int64, key, value string) error {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND meta_key = ? LIMIT 1`,
		idCol, table, ownerCol)
	var metaID int64
	err := s.db.GetContext(ctx, &metaID, q, owner, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		q = fmt.Sprintf(`INSERT INTO %s (%s, meta_key, meta_value) VALUES (?,?,?)`,
			table, ownerCol)
		if _, err := s.db.ExecContext(ctx, q, owner, key, value); err != nil {
			return fmt.Errorf("store: insert meta %q: %w", key, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: probe meta %q: %w", key, err)
	}
	q = fmt.Sprintf(`UPDATE %s SET meta_value = ? WHERE %s = ?`, table, idCol)
	if _, err := s.db.ExecContext(ctx, q, value, metaID); err != nil {
		return fmt.Errorf("store: update meta %q: %w", key, err)
	}
	return nil
}

func (s *SQL) getMeta(ctx context.Context, table, ownerCol string, owner int64, key string) (string, bool, error) {
	q := fmt.Sprintf(`SELECT meta_value FROM %s WHERE %s = ? AND meta_key = ? LIMIT 1`,
		table, ownerCol)
	var v string
	err := s.db.GetContext(ctx, &v, q, owner, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get meta %q: %w", key, err)
	}
	return v, true, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var _ Store = (*SQL)(nil)
