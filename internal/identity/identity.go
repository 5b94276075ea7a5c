// internal/identity/identity.go
//
// Durable (source id, tenant, kind) → local id correspondence.
//
// Context
// -------
// Every write decision in the import pipeline starts here: the mapper is
// consulted before any create, and records the link after any successful
// write.  For a given key there is at most one local id, and re-running
// over the same source range resolves to the same id.
//
// Notes
// -----
// • The memo is per run.  NewRun purges it because local entities may be
//   deleted externally between runs; the memo must never survive that.
// • CreateGuard serializes the lookup/create window so concurrent chunk
//   workers cannot create two locals for one key.
package identity

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/hacklabr/wpmigrate/internal/cache"
	"github.com/hacklabr/wpmigrate/internal/store"
)

// Key identifies one source entity.
type Key struct {
	SourceID int64
	Tenant   int
	Kind     store.EntityKind
}

// Mapper resolves and records identity links on top of the local store.
type Mapper struct {
	st   store.Store
	memo *cache.LRU
	log  *zap.SugaredLogger

	guards *keyMutex
}

// NewMapper returns a Mapper with a memo of the given capacity.
func NewMapper(st store.Store, memoSize int, log *zap.SugaredLogger) *Mapper {
	if memoSize < 1 {
		memoSize = 4096
	}
	return &Mapper{
		st:     st,
		memo:   cache.New(memoSize),
		log:    log,
		guards: newKeyMutex(),
	}
}

// NewRun drops every memoized pair.  Call once at the start of each run.
func (m *Mapper) NewRun() {
	m.memo.Purge()
}

// FindLocal resolves a source key to its local id.  The memo answers
// repeat lookups within a run; misses fall through to the store.
func (m *Mapper) FindLocal(ctx context.Context, k Key) (int64, bool, error) {
	if v, ok := m.memo.Get(k); ok {
		return v.(int64), true, nil
	}

	var (
		id    int64
		found bool
		err   error
	)
	switch k.Kind {
	case store.KindTerm:
		id, found, err = m.st.FindTermBySourceKey(ctx, k.SourceID, k.Tenant)
	case store.KindUser:
		id, found, err = m.st.FindUserBySourceKey(ctx, k.SourceID, k.Tenant)
	default:
		id, found, err = m.st.FindEntityBySourceKey(ctx, k.Kind, k.SourceID, k.Tenant)
	}
	if err != nil {
		return 0, false, err
	}
	if found {
		m.memo.Add(k, id)
	}
	return id, found, nil
}

// RecordLink persists the identity metadata on the local entity and warms
// the memo.  Safe to call repeatedly with the same pair.
func (m *Mapper) RecordLink(ctx context.Context, k Key, localID int64) error {
	sid := strconv.FormatInt(k.SourceID, 10)
	ten := strconv.Itoa(k.Tenant)

	var err error
	switch k.Kind {
	case store.KindTerm:
		if err = m.st.SetTermMeta(ctx, localID, store.SourceIDKey, sid); err == nil {
			err = m.st.SetTermMeta(ctx, localID, store.SourceTenantKey, ten)
		}
	case store.KindUser:
		if err = m.st.SetUserMeta(ctx, localID, store.SourceIDKey, sid); err == nil {
			err = m.st.SetUserMeta(ctx, localID, store.SourceTenantKey, ten)
		}
	default:
		if err = m.st.SetEntityMeta(ctx, localID, store.SourceIDKey, sid); err == nil {
			err = m.st.SetEntityMeta(ctx, localID, store.SourceTenantKey, ten)
		}
	}
	if err != nil {
		return err
	}
	m.memo.Add(k, localID)
	return nil
}

// ResolveOrCreate runs create under the per-key guard: a second caller for
// the same key blocks until the first finishes, then resolves to the id
// the first one recorded.  create must return the new local id; the link
// is recorded here.
func (m *Mapper) ResolveOrCreate(ctx context.Context, k Key, create func(ctx context.Context) (int64, error)) (localID int64, created bool, err error) {
	unlock := m.guards.lock(k)
	defer unlock()

	if id, found, err := m.FindLocal(ctx, k); err != nil || found {
		return id, false, err
	}

	id, err := create(ctx)
	if err != nil {
		return 0, false, err
	}
	if err := m.RecordLink(ctx, k, id); err != nil {
		return 0, false, err
	}
	m.log.Debugw("identity link created",
		"kind", k.Kind, "source_id", k.SourceID, "tenant", k.Tenant, "local_id", id)
	return id, true, nil
}
