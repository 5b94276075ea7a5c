// internal/engine/options.go
//
// Run options.  Hooks are typed funcs, injected by the caller; the engine
// never resolves callbacks by name.
package engine

import (
	"context"
	"fmt"

	"github.com/hacklabr/wpmigrate/internal/source"
)

// WriteMode decides what happens when the identity mapper already knows a
// source row, and whether unmapped rows may be created at all.
type WriteMode string

const (
	WriteInsert WriteMode = "insert" // create only; mapped rows are skipped
	WriteUpdate WriteMode = "update" // refresh only; unmapped rows are skipped
	WriteUpsert WriteMode = "upsert" // create or refresh
)

// ParseWriteMode validates a mode string.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case WriteInsert, WriteUpdate, WriteUpsert:
		return WriteMode(s), nil
	case "":
		return WriteUpsert, nil
	}
	return "", &ConfigError{Field: "write_mode", Msg: fmt.Sprintf("unknown mode %q", s)}
}

// Draft is the in-flight local entity a PreHook may mutate before the
// write decision.
type Draft struct {
	Entity struct {
		Kind, Status, Title, Body, Excerpt, Slug string
		CreatedAt, CreatedAtUTC                  string
		AuthorID                                 int64
	}
	Meta map[string]string
	Row  source.Row // fetched row, read-only
}

// PreHook runs before the write decision and may mutate the draft.  An
// error is recorded against the row; the row still proceeds.
type PreHook func(ctx context.Context, d *Draft) error

// PostHook runs after a successful write with the local id.
type PostHook func(ctx context.Context, localID int64, row source.Row, updated, dryRun bool) error

// TermOp names terms to relate to (or detach from) every imported entry
// after its write.
type TermOp struct {
	Taxonomy string
	Slugs    []string
}

// MetaOp is an arbitrary metadata write applied after the entry's own
// metadata.  Delete removes the key instead of writing Value.
type MetaOp struct {
	Key    string
	Value  string
	Delete bool
}

// Options drives one RunImport invocation.
type Options struct {
	Fetch source.Filter // includes tenant and force-base settings

	WriteMode WriteMode
	DryRun    bool

	WithMedia   bool
	AssignTerms bool
	MapUsers    bool

	// taxonomy remaps applied when assigning fetched terms, remote
	// taxonomy name → local
	TaxonomyMap map[string]string

	MetaOps     []MetaOp
	TermAdd     []TermOp
	TermSet     []TermOp
	TermRemove  []TermOp
	PreHook     PreHook
	PostHook    PostHook

	// OldUploadsBaseURL / NewUploadsBaseURL feed the URL rewrite map.
	OldUploadsBaseURL string
	NewUploadsBaseURL string

	// RunID > 0 reuses an allocated id instead of drawing a fresh one.
	RunID int64

	ChunkSize int
}

func (o *Options) normalize() error {
	mode, err := ParseWriteMode(string(o.WriteMode))
	if err != nil {
		return err
	}
	o.WriteMode = mode
	if o.ChunkSize <= 0 {
		o.ChunkSize = 500
	}
	if o.Fetch.Limit <= 0 {
		o.Fetch.Limit = o.ChunkSize
	}
	return nil
}

// TermOptions drives one ImportTerms invocation.
type TermOptions struct {
	Filter source.TermFilter

	// taxonomy remaps, remote name → local
	TaxonomyMap map[string]string

	DryRun    bool
	ChunkSize int
	RunID     int64
}

// UserOptions drives one ImportUsers invocation.
type UserOptions struct {
	Filter source.UserFilter

	// ReservedLogins are never imported (e.g. the site's admin account).
	ReservedLogins []string

	DryRun    bool
	ChunkSize int
	RunID     int64
}

// AttachmentOptions drives one ImportAttachments invocation.
type AttachmentOptions struct {
	Tenant     *int
	ForceBase  bool
	IncludeIDs []int64

	OldUploadsBaseURL string
	NewUploadsBaseURL string

	DryRun    bool
	ChunkSize int
	RunID     int64
}
