// internal/store/store.go
//
// Local content store contract.
//
// Context
// -------
// The import engine never talks to the local persistence layer directly;
// it goes through this interface so the same pipeline runs against a real
// backend, the in-memory store used by tests, or a dry-run recorder.
// Every call takes a context because the backing store may be remote.
package store

import "context"

// EntityKind partitions the source-identity namespace.  A source id is
// only unique within its kind.
type EntityKind string

const (
	KindEntry      EntityKind = "entry"
	KindTerm       EntityKind = "term"
	KindUser       EntityKind = "user"
	KindAttachment EntityKind = "attachment"
)

// Entity is one content entry in the local store.
type Entity struct {
	ID            int64
	Kind          string
	Status        string
	Title         string
	Body          string
	Excerpt       string
	Slug          string
	CreatedAt     string
	CreatedAtUTC  string
	ModifiedAt    string
	ModifiedAtUTC string
	ParentID      int64
	AuthorID      int64
	MimeType      string
}

// Term is one taxonomy term in the local store.
type Term struct {
	ID          int64
	Taxonomy    string
	Name        string
	Slug        string
	Description string
	ParentID    int64
}

// User is one account in the local store.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	NiceName     string
	Email        string
	URL          string
	RegisteredAt string
	DisplayName  string
}

// BinaryResource registers a downloaded file as a local resource.
type BinaryResource struct {
	LocalFile string // path to the downloaded temp file
	FileName  string
	MimeType  string
	Title     string
	ParentID  int64 // owning entity, 0 for unattached
}

// Entries is the entry surface of the local store.
type Entries interface {
	CreateEntity(ctx context.Context, e Entity) (int64, error)
	UpdateEntity(ctx context.Context, e Entity) error
	GetEntity(ctx context.Context, id int64) (Entity, bool, error)
	SetEntityMeta(ctx context.Context, id int64, key, value string) error
	GetEntityMeta(ctx context.Context, id int64, key string) (string, bool, error)
	DeleteEntityMeta(ctx context.Context, id int64, key string) error

	// FindEntityBySourceKey resolves the durable source identity written
	// into entity metadata.  Kind distinguishes entries from attachments.
	FindEntityBySourceKey(ctx context.Context, kind EntityKind, sourceID int64, tenant int) (int64, bool, error)
	// FindEntityByMeta returns the first entity carrying key=value.
	FindEntityByMeta(ctx context.Context, kind string, key, value string) (int64, bool, error)

	AttachBinaryResource(ctx context.Context, r BinaryResource) (int64, error)
	// ResourceURL returns the public URL of a registered resource.
	ResourceURL(ctx context.Context, id int64) (string, bool, error)
}

// Terms is the taxonomy surface of the local store.
type Terms interface {
	TaxonomyExists(ctx context.Context, taxonomy string) (bool, error)
	FindTermBySlug(ctx context.Context, taxonomy, slug string) (Term, bool, error)
	FindTermByName(ctx context.Context, taxonomy, name string) (Term, bool, error)
	CreateTerm(ctx context.Context, t Term) (int64, error)
	UpdateTerm(ctx context.Context, t Term) error
	SetTermMeta(ctx context.Context, id int64, key, value string) error
	GetTermMeta(ctx context.Context, id int64, key string) (string, bool, error)
	FindTermBySourceKey(ctx context.Context, sourceID int64, tenant int) (int64, bool, error)

	// AssignTerms relates an entity to terms within one taxonomy.  With
	// replace=false the terms are appended to the existing set.
	AssignTerms(ctx context.Context, entityID int64, taxonomy string, termIDs []int64, replace bool) error
	RemoveTerms(ctx context.Context, entityID int64, taxonomy string, termIDs []int64) error
	EntityTerms(ctx context.Context, entityID int64, taxonomy string) ([]int64, error)
}

// Users is the account surface of the local store.
type Users interface {
	FindUserByLogin(ctx context.Context, login string) (User, bool, error)
	FindUserByEmail(ctx context.Context, email string) (User, bool, error)
	CreateUser(ctx context.Context, u User) (int64, error)
	UpdateUser(ctx context.Context, u User) error
	SetUserMeta(ctx context.Context, id int64, key, value string) error
	GetUserMeta(ctx context.Context, id int64, key string) (string, bool, error)
	FindUserBySourceKey(ctx context.Context, sourceID int64, tenant int) (int64, bool, error)
}

// Options is the host key-value surface.  The encrypted credential blob
// and the run counter live here.
type Options interface {
	GetOption(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
}

// Store aggregates every surface the engine needs.
type Store interface {
	Entries
	Terms
	Users
	Options
}
