// internal/engine/runid.go
//
// Monotonic run identifier, persisted in the host options KV.  Every
// entity touched by a run carries the id so "what did run N change" stays
// answerable after the fact.  Dry runs never draw an id.
package engine

import (
	"context"
	"strconv"
	"sync"

	"github.com/hacklabr/wpmigrate/internal/store"
)

// RunIDOption is the option record holding the counter.
const RunIDOption = "wpmigrate_import_run_id"

// RunIDKey is the metadata key stamped onto touched entities.
const RunIDKey = "_wpmigrate_run_id"

var runIDMu sync.Mutex

// NextRunID increments and persists the run counter, returning the new
// value.  Serialized process-wide; concurrent engines sharing one store
// should allocate once and pass the id through Options.RunID.
func NextRunID(ctx context.Context, opts store.Options) (int64, error) {
	runIDMu.Lock()
	defer runIDMu.Unlock()

	cur := int64(0)
	if raw, ok, err := opts.GetOption(ctx, RunIDOption); err != nil {
		return 0, err
	} else if ok {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cur = n
		}
	}
	next := cur + 1
	if err := opts.SetOption(ctx, RunIDOption, strconv.FormatInt(next, 10)); err != nil {
		return 0, err
	}
	return next, nil
}
