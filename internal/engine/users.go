// internal/engine/users.go
//
// Account importer.
//
// Notes
// -----
// • Login is never rewritten once an account exists; collisions on create
//   get a numeric suffix (login_1, login_2, …).
// • Password hashes travel verbatim — the local store receives the remote
//   hash, not a regenerated secret.
// • Importing from a multi-tenant source into a single site duplicates
//   tenant-prefixed metadata (wp_<n>_capabilities and friends) under the
//   local prefix while preserving the original keys.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hacklabr/wpmigrate/internal/identity"
	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
)

// SourceMetaKey stores the unmodified remote metadata snapshot on the
// imported record.
const SourceMetaKey = "_wpmigrate_source_meta"

// ImportUsers fetches and imports accounts per the options.
func (e *Engine) ImportUsers(ctx context.Context, o UserOptions) (*UserImportSummary, error) {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 200
	}

	runID := o.RunID
	if !o.DryRun && runID == 0 {
		var err error
		if runID, err = NextRunID(ctx, e.st); err != nil {
			return nil, err
		}
	}
	sum := newUserSummary(runID)
	e.ids.NewRun()

	ids, err := source.FetchUserIDs(ctx, e.remote, e.tables, o.Filter)
	if err != nil {
		return nil, err
	}
	sum.Found = len(ids)

	tenant := 1
	if o.Filter.Tenant != nil && *o.Filter.Tenant > 1 {
		tenant = *o.Filter.Tenant
	}

	reserved := make(map[string]bool, len(o.ReservedLogins))
	for _, l := range o.ReservedLogins {
		reserved[l] = true
	}

	for start := 0; start < len(ids); start += o.ChunkSize {
		end := min(start+o.ChunkSize, len(ids))
		rows, err := source.FetchUsers(ctx, e.remote, e.tables, ids[start:end])
		if err != nil {
			return sum, err
		}
		for _, row := range rows {
			if reserved[row.Login] {
				sum.Skipped++
				continue
			}
			e.importUser(ctx, row, tenant, o, sum)
		}
	}
	return sum, nil
}

func (e *Engine) importUser(ctx context.Context, row source.UserRow, tenant int, o UserOptions, sum *UserImportSummary) {
	if o.DryRun {
		if u, ok, _ := e.st.FindUserByLogin(ctx, row.Login); ok {
			sum.Map[row.ID] = u.ID
		} else {
			sum.Map[row.ID] = 0
		}
		return
	}

	key := identity.Key{SourceID: row.ID, Tenant: tenant, Kind: store.KindUser}

	localID, found, err := e.ids.FindLocal(ctx, key)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("user %d: %v", row.ID, err))
		return
	}
	if !found {
		if u, ok, err := e.st.FindUserByLogin(ctx, row.Login); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %d: %v", row.ID, err))
			return
		} else if ok {
			localID, found = u.ID, true
		}
	}
	if !found && row.Email != "" {
		if u, ok, err := e.st.FindUserByEmail(ctx, row.Email); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %d: %v", row.ID, err))
			return
		} else if ok {
			localID, found = u.ID, true
		}
	}

	if found {
		err = e.st.UpdateUser(ctx, store.User{
			ID:          localID,
			NiceName:    row.NiceName,
			Email:       row.Email,
			URL:         row.URL,
			DisplayName: row.DisplayName,
		})
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %d update: %v", row.ID, err))
			return
		}
		sum.Updated++
	} else {
		login, err := e.availableLogin(ctx, row.Login)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %d: %v", row.ID, err))
			return
		}
		localID, err = e.st.CreateUser(ctx, store.User{
			Login:        login,
			PasswordHash: row.PasswordHash,
			NiceName:     row.NiceName,
			Email:        row.Email,
			URL:          row.URL,
			RegisteredAt: row.RegisteredAt,
			DisplayName:  row.DisplayName,
		})
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %d create: %v", row.ID, err))
			return
		}
		sum.Imported++
	}

	e.writeUserMeta(ctx, localID, row, tenant, sum)

	if err := e.ids.RecordLink(ctx, key, localID); err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("user %d link: %v", row.ID, err))
		return
	}
	if sum.RunID > 0 {
		if err := e.st.SetUserMeta(ctx, localID, RunIDKey, strconv.FormatInt(sum.RunID, 10)); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %d run stamp: %v", row.ID, err))
		}
	}
	sum.Map[row.ID] = localID
}

// availableLogin suffixes a colliding login until it is free.
func (e *Engine) availableLogin(ctx context.Context, login string) (string, error) {
	candidate := login
	for suffix := 1; ; suffix++ {
		_, taken, err := e.st.FindUserByLogin(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = login + "_" + strconv.Itoa(suffix)
	}
}

func (e *Engine) writeUserMeta(ctx context.Context, localID int64, row source.UserRow, tenant int, sum *UserImportSummary) {
	remoteTenantPrefix := ""
	if tenant > 1 {
		remoteTenantPrefix = fmt.Sprintf("%s%d_", e.tables.Prefix, tenant)
	}

	var snapshot source.Value
	snapshot.Kind = source.KindMap

	for _, m := range row.Meta {
		if m.Key == store.SourceIDKey || m.Key == store.SourceTenantKey {
			continue
		}
		snapshot.Map = append(snapshot.Map, source.MapEntry{Key: m.Key, Value: m.Value})

		if err := e.st.SetUserMeta(ctx, localID, m.Key, m.Value.Encode()); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("user %d meta %s: %v", row.ID, m.Key, err))
			continue
		}
		// capabilities and friends also land under the local prefix
		if remoteTenantPrefix != "" && strings.HasPrefix(m.Key, remoteTenantPrefix) {
			localKey := e.tables.Prefix + strings.TrimPrefix(m.Key, remoteTenantPrefix)
			if err := e.st.SetUserMeta(ctx, localID, localKey, m.Value.Encode()); err != nil {
				sum.Errors = append(sum.Errors, fmt.Sprintf("user %d meta %s: %v", row.ID, localKey, err))
			}
		}
	}

	if err := e.st.SetUserMeta(ctx, localID, SourceMetaKey, snapshot.Encode()); err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("user %d snapshot: %v", row.ID, err))
	}
}

// resolveAuthor maps a remote author id to the local account, importing it
// on demand.  Returns 0 when the author cannot be resolved.
func (e *Engine) resolveAuthor(ctx context.Context, remoteID int64, tenant int, mapUsers, dryRun bool) (int64, error) {
	if remoteID <= 0 {
		return 0, nil
	}
	key := identity.Key{SourceID: remoteID, Tenant: tenant, Kind: store.KindUser}
	if id, found, err := e.ids.FindLocal(ctx, key); err != nil || found {
		return id, err
	}
	if !mapUsers || dryRun {
		return 0, nil
	}

	rows, err := source.FetchUsers(ctx, e.remote, e.tables, []int64{remoteID})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	sub := newUserSummary(0)
	e.importUser(ctx, rows[0], tenant, UserOptions{}, sub)
	if len(sub.Errors) > 0 {
		return 0, fmt.Errorf("import author %d: %s", remoteID, sub.Errors[0])
	}
	return sub.Map[remoteID], nil
}
