// internal/store/memory.go
//
// In-memory Store used by tests and dry-run rehearsal.  Everything is
// guarded by one mutex; lookups scan, which is fine at test scale.
package store

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
)

// Reserved metadata keys carrying the durable source identity.  Written
// by the engine, queried by FindEntityBySourceKey and friends.
const (
	SourceIDKey     = "_wpmigrate_source_id"
	SourceTenantKey = "_wpmigrate_source_tenant"
	SourceURLKey    = "_wpmigrate_source_url"
)

type memEntity struct {
	Entity
	meta map[string]string
}

type memTerm struct {
	Term
	meta map[string]string
}

type memUser struct {
	User
	meta map[string]string
}

type memResource struct {
	BinaryResource
	url string
}

// Memory implements Store on process-local maps.
type Memory struct {
	mu sync.Mutex

	nextID int64

	entities  map[int64]*memEntity
	terms     map[int64]*memTerm
	users     map[int64]*memUser
	resources map[int64]*memResource
	relations map[int64]map[string][]int64
	options   map[string]string

	taxonomies map[string]bool

	// BaseURL prefixes registered resource URLs.
	BaseURL string
}

// NewMemory returns an empty store with the given taxonomies registered.
// category and post_tag are always present.
func NewMemory(taxonomies ...string) *Memory {
	tax := map[string]bool{"category": true, "post_tag": true}
	for _, t := range taxonomies {
		tax[t] = true
	}
	return &Memory{
		entities:   make(map[int64]*memEntity),
		terms:      make(map[int64]*memTerm),
		users:      make(map[int64]*memUser),
		resources:  make(map[int64]*memResource),
		relations:  make(map[int64]map[string][]int64),
		options:    make(map[string]string),
		taxonomies: tax,
		BaseURL:    "https://new.example.org/wp-content/uploads/",
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

/*──────────────────────────── entries ─────────────────────────────────────*/

func (m *Memory) CreateEntity(_ context.Context, e Entity) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	m.entities[e.ID] = &memEntity{Entity: e, meta: map[string]string{}}
	return e.ID, nil
}

func (m *Memory) UpdateEntity(_ context.Context, e Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entities[e.ID]
	if !ok {
		return fmt.Errorf("store: entity %d not found", e.ID)
	}
	meta := cur.meta
	cur.Entity = e
	cur.meta = meta
	return nil
}

func (m *Memory) GetEntity(_ context.Context, id int64) (Entity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return Entity{}, false, nil
	}
	return e.Entity, true, nil
}

func (m *Memory) SetEntityMeta(_ context.Context, id int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("store: entity %d not found", id)
	}
	e.meta[key] = value
	return nil
}

func (m *Memory) GetEntityMeta(_ context.Context, id int64, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return "", false, nil
	}
	v, ok := e.meta[key]
	return v, ok, nil
}

func (m *Memory) DeleteEntityMeta(_ context.Context, id int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[id]; ok {
		delete(e.meta, key)
	}
	return nil
}

func (m *Memory) FindEntityBySourceKey(_ context.Context, kind EntityKind, sourceID int64, tenant int) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sid := strconv.FormatInt(sourceID, 10)
	ten := strconv.Itoa(tenant)
	for id, e := range m.entities {
		if kind == KindAttachment && e.Kind != "attachment" {
			continue
		}
		if kind == KindEntry && e.Kind == "attachment" {
			continue
		}
		if e.meta[SourceIDKey] == sid && e.meta[SourceTenantKey] == ten {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *Memory) FindEntityByMeta(_ context.Context, kind string, key, value string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entities {
		if kind != "" && e.Kind != kind {
			continue
		}
		if e.meta[key] == value {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *Memory) AttachBinaryResource(_ context.Context, r BinaryResource) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.resources[id] = &memResource{BinaryResource: r, url: m.BaseURL + r.FileName}
	m.entities[id] = &memEntity{
		Entity: Entity{
			ID:       id,
			Kind:     "attachment",
			Status:   "inherit",
			Title:    r.Title,
			MimeType: r.MimeType,
			ParentID: r.ParentID,
			Slug:     path.Base(r.FileName),
		},
		meta: map[string]string{},
	}
	return id, nil
}

func (m *Memory) ResourceURL(_ context.Context, id int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return "", false, nil
	}
	return r.url, true, nil
}

/*──────────────────────────── terms ───────────────────────────────────────*/

func (m *Memory) TaxonomyExists(_ context.Context, taxonomy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taxonomies[taxonomy], nil
}

func (m *Memory) FindTermBySlug(_ context.Context, taxonomy, slug string) (Term, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.terms {
		if t.Taxonomy == taxonomy && t.Slug == slug {
			return t.Term, true, nil
		}
	}
	return Term{}, false, nil
}

func (m *Memory) FindTermByName(_ context.Context, taxonomy, name string) (Term, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.terms {
		if t.Taxonomy == taxonomy && t.Name == name {
			return t.Term, true, nil
		}
	}
	return Term{}, false, nil
}

func (m *Memory) CreateTerm(_ context.Context, t Term) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	m.terms[t.ID] = &memTerm{Term: t, meta: map[string]string{}}
	return t.ID, nil
}

func (m *Memory) UpdateTerm(_ context.Context, t Term) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.terms[t.ID]
	if !ok {
		return fmt.Errorf("store: term %d not found", t.ID)
	}
	meta := cur.meta
	cur.Term = t
	cur.meta = meta
	return nil
}

func (m *Memory) SetTermMeta(_ context.Context, id int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[id]
	if !ok {
		return fmt.Errorf("store: term %d not found", id)
	}
	t.meta[key] = value
	return nil
}

func (m *Memory) GetTermMeta(_ context.Context, id int64, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[id]
	if !ok {
		return "", false, nil
	}
	v, ok := t.meta[key]
	return v, ok, nil
}

func (m *Memory) FindTermBySourceKey(_ context.Context, sourceID int64, tenant int) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sid := strconv.FormatInt(sourceID, 10)
	ten := strconv.Itoa(tenant)
	for id, t := range m.terms {
		if t.meta[SourceIDKey] == sid && t.meta[SourceTenantKey] == ten {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *Memory) AssignTerms(_ context.Context, entityID int64, taxonomy string, termIDs []int64, replace bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel := m.relations[entityID]
	if rel == nil {
		rel = map[string][]int64{}
		m.relations[entityID] = rel
	}
	if replace {
		rel[taxonomy] = append([]int64(nil), termIDs...)
		return nil
	}
	have := map[int64]bool{}
	for _, id := range rel[taxonomy] {
		have[id] = true
	}
	for _, id := range termIDs {
		if !have[id] {
			rel[taxonomy] = append(rel[taxonomy], id)
			have[id] = true
		}
	}
	return nil
}

func (m *Memory) RemoveTerms(_ context.Context, entityID int64, taxonomy string, termIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel := m.relations[entityID]
	if rel == nil {
		return nil
	}
	drop := map[int64]bool{}
	for _, id := range termIDs {
		drop[id] = true
	}
	kept := rel[taxonomy][:0]
	for _, id := range rel[taxonomy] {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	rel[taxonomy] = kept
	return nil
}

func (m *Memory) EntityTerms(_ context.Context, entityID int64, taxonomy string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.relations[entityID][taxonomy]...), nil
}

/*──────────────────────────── users ───────────────────────────────────────*/

func (m *Memory) FindUserByLogin(_ context.Context, login string) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Login == login {
			return u.User, true, nil
		}
	}
	return User{}, false, nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u.User, true, nil
		}
	}
	return User{}, false, nil
}

func (m *Memory) CreateUser(_ context.Context, u User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	m.users[u.ID] = &memUser{User: u, meta: map[string]string{}}
	return u.ID, nil
}

func (m *Memory) UpdateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return fmt.Errorf("store: user %d not found", u.ID)
	}
	// login and password hash are immutable through updates, same as the
	// SQL store
	u.Login = cur.Login
	u.PasswordHash = cur.PasswordHash
	if u.RegisteredAt == "" {
		u.RegisteredAt = cur.RegisteredAt
	}
	meta := cur.meta
	cur.User = u
	cur.meta = meta
	return nil
}

func (m *Memory) SetUserMeta(_ context.Context, id int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("store: user %d not found", id)
	}
	u.meta[key] = value
	return nil
}

func (m *Memory) GetUserMeta(_ context.Context, id int64, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return "", false, nil
	}
	v, ok := u.meta[key]
	return v, ok, nil
}

func (m *Memory) FindUserBySourceKey(_ context.Context, sourceID int64, tenant int) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sid := strconv.FormatInt(sourceID, 10)
	ten := strconv.Itoa(tenant)
	for id, u := range m.users {
		if u.meta[SourceIDKey] == sid && u.meta[SourceTenantKey] == ten {
			return id, true, nil
		}
	}
	return 0, false, nil
}

/*──────────────────────────── options ─────────────────────────────────────*/

func (m *Memory) GetOption(_ context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.options[name]
	return v, ok, nil
}

func (m *Memory) SetOption(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[name] = value
	return nil
}

var _ Store = (*Memory)(nil)
