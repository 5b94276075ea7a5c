// internal/engine/errors.go
//
// Error taxonomy for one import run.
//
// Context
// -------
// Only connection failures (source.ConnectionError) and ConfigError abort
// a run.  Query failures abort the current fetch but keep prior chunks'
// commits.  Everything row-scoped is accumulated into the summary and the
// loop continues; re-running is the retry strategy, made safe by the
// idempotent upsert path.
package engine

import "fmt"

// ConfigError reports an unusable option before any I/O is attempted.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("engine: config %s: %s", e.Field, e.Msg)
}

// RowError records a single row's failure.  The row is skipped; the run
// continues.
type RowError struct {
	SourceID int64
	Stage    string // create, update, hook, terms, media, meta
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("engine: row %d at %s: %v", e.SourceID, e.Stage, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// MissingResource is one binary resource that could not be resolved.
// Collected in the summary's missing list, never fatal.
type MissingResource struct {
	SourceID int64  // owning entry's source id, 0 when unknown
	URL      string
	Reason   string
}

func (m MissingResource) String() string {
	return fmt.Sprintf("%s (%s)", m.URL, m.Reason)
}
