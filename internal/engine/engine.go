// internal/engine/engine.go
//
// Migration engine wiring.
//
// Context
// -------
// One Engine holds the remote handle, the tenant-aware table resolver,
// the local store, and the identity mapper; every importer (entries,
// terms, users, attachments) runs through it.  All collaborators are
// injected at construction, never reached through globals.
package engine

import (
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hacklabr/wpmigrate/internal/identity"
	"github.com/hacklabr/wpmigrate/internal/media"
	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
)

// Engine drives imports from one remote source into one local store.
type Engine struct {
	remote *sqlx.DB
	tables source.Tables
	st     store.Store
	ids    *identity.Mapper
	dl     *media.Downloader
	log    *zap.SugaredLogger
}

// New returns a ready Engine.  dl may be nil when media processing is
// never enabled.
func New(remote *sqlx.DB, tables source.Tables, st store.Store, ids *identity.Mapper, dl *media.Downloader, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.S()
	}
	return &Engine{remote: remote, tables: tables, st: st, ids: ids, dl: dl, log: log}
}

// Slugify derives a URL-safe slug from free text, used when a source row
// carries no slug of its own.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
