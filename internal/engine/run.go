// internal/engine/run.go
//
// Entry importer and orchestrator.
//
// Context
// -------
// One RunImport call drives the full pipeline: fetch a chunk, run the
// pre-hook, decide create/update/skip against the identity mapper and the
// write mode, resolve terms and binary resources for the batch, rewrite
// embedded URLs, run the post-hook, record the mapping.  A failing row is
// recorded and skipped; the loop never aborts for one row.
//
// Dry-run exercises the identical path with every mutating call
// suppressed, so counters and hooks behave the same and create/update
// counts stay honestly at zero.
package engine

import (
	"context"
	"strconv"

	"github.com/hacklabr/wpmigrate/internal/identity"
	"github.com/hacklabr/wpmigrate/internal/metrics"
	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
)

// statuses an imported entry may keep; anything else lands as publish.
var keepableStatuses = map[string]bool{
	"publish": true, "draft": true, "pending": true, "private": true,
}

// RunImport executes one import run and returns its summary.  Fatal
// errors (connection, config) surface as the second return; row-scoped
// failures accumulate in the summary.
func (e *Engine) RunImport(ctx context.Context, o Options) (*RunSummary, error) {
	if err := o.normalize(); err != nil {
		return nil, err
	}

	runID := o.RunID
	if !o.DryRun && runID == 0 {
		var err error
		if runID, err = NextRunID(ctx, e.st); err != nil {
			return nil, err
		}
	}
	sum := newRunSummary(runID)
	e.ids.NewRun()
	metrics.RunsStarted.Inc()

	tenant := o.Fetch.TenantID()

	rewriter := NewRewriter(BuildURLMap(o.OldUploadsBaseURL, o.NewUploadsBaseURL, tenant))

	fetch := o.Fetch
	fetch.WithMeta = true
	for {
		rows, err := source.FetchPosts(ctx, e.remote, e.tables, fetch)
		if err != nil {
			return sum, err
		}
		if len(rows) == 0 {
			break
		}
		sum.Found += len(rows)
		metrics.RowsFetched.Add(float64(len(rows)))

		// batch-level term and media resolution
		var termsByRow map[int64][]source.TermRow
		if o.AssignTerms {
			if termsByRow, err = e.fetchRowTerms(ctx, rows, fetch); err != nil {
				sum.addError(err)
				termsByRow = nil
			}
		}

		batchRewriter := rewriter
		var batch *attachmentBatch
		if o.WithMedia {
			batch = e.newAttachmentBatch(tenant, runID, o.DryRun, o.OldUploadsBaseURL, &sum.Attachments)
			refs := batch.discover(ctx, rows, fetch.ForceBase)
			batch.resolve(ctx, refs)
			pairs := append(batch.rewritePairs(refs), rewriter.pairs...)
			batchRewriter = NewRewriter(pairs)
		}

		for _, row := range rows {
			e.importRow(ctx, row, o, tenant, batchRewriter, batch, termsByRow[row.ID], sum)
		}

		if len(rows) < fetch.Limit {
			break
		}
		fetch.Offset += fetch.Limit
	}

	metrics.EntriesImported.Add(float64(sum.Imported))
	metrics.EntriesUpdated.Add(float64(sum.Updated))
	metrics.AttachmentsRegistered.Add(float64(sum.Attachments.Registered))
	metrics.AttachmentsReused.Add(float64(sum.Attachments.Reused))
	metrics.AttachmentsMissing.Add(float64(len(sum.Attachments.Missing)))

	e.log.Infow("import run finished",
		"run_id", sum.RunID, "found", sum.Found, "imported", sum.Imported,
		"updated", sum.Updated, "skipped", sum.Skipped, "errors", len(sum.Errors),
		"dry_run", o.DryRun)
	return sum, nil
}

// fetchRowTerms loads the remote term assignments for one chunk in a
// single set of queries.
func (e *Engine) fetchRowTerms(ctx context.Context, rows []source.Row, f source.Filter) (map[int64][]source.TermRow, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	assigned, err := source.FetchEntryTerms(ctx, e.remote, e.tables, f.Tenant, f.ForceBase, ids)
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

func (e *Engine) importRow(ctx context.Context, row source.Row, o Options, tenant int, rw *Rewriter, batch *attachmentBatch, terms []source.TermRow, sum *RunSummary) {
	fail := func(stage string, err error) {
		sum.addError(&RowError{SourceID: row.ID, Stage: stage, Err: err})
		sum.Skipped++
		metrics.RowErrors.Inc()
	}

	draft := e.buildDraft(ctx, row, o, tenant, rw, sum)

	if o.PreHook != nil {
		if err := o.PreHook(ctx, draft); err != nil {
			// recorded, not fatal to the row
			sum.addError(&RowError{SourceID: row.ID, Stage: "pre-hook", Err: err})
		}
	}

	key := identity.Key{SourceID: row.ID, Tenant: tenant, Kind: store.KindEntry}
	localID, exists, err := e.ids.FindLocal(ctx, key)
	if err != nil {
		fail("lookup", err)
		return
	}

	if o.DryRun {
		// same path as a real run minus the mutations: term lookups still
		// happen, and the post-hook observes the row with localID 0 when
		// it would be created.
		for _, tr := range terms {
			tk := identity.Key{SourceID: tr.TermID, Tenant: tenant, Kind: store.KindTerm}
			if _, _, err := e.ids.FindLocal(ctx, tk); err != nil {
				sum.addError(&RowError{SourceID: row.ID, Stage: "terms", Err: err})
			}
		}
		if o.PostHook != nil {
			wouldUpdate := exists && o.WriteMode != WriteInsert
			if err := o.PostHook(ctx, localID, row, wouldUpdate, true); err != nil {
				sum.addError(&RowError{SourceID: row.ID, Stage: "post-hook", Err: err})
			}
		}
		sum.Map[row.ID] = localID // 0 when the row would be created
		return
	}

	var updated bool
	switch {
	case exists && o.WriteMode != WriteInsert:
		ent := draftEntity(draft, localID)
		if err := e.st.UpdateEntity(ctx, ent); err != nil {
			fail("update", err)
			return
		}
		sum.Updated++
		updated = true

	case exists: // insert-only leaves mapped rows untouched
		sum.Skipped++
		sum.Map[row.ID] = localID
		return

	case o.WriteMode != WriteUpdate:
		localID, _, err = e.ids.ResolveOrCreate(ctx, key, func(ctx context.Context) (int64, error) {
			return e.st.CreateEntity(ctx, draftEntity(draft, 0))
		})
		if err != nil {
			fail("create", err)
			return
		}
		sum.Imported++

	default: // update-only with no mapped row
		sum.Skipped++
		return
	}

	for k, v := range draft.Meta {
		if k == store.SourceIDKey || k == store.SourceTenantKey {
			continue
		}
		if err := e.st.SetEntityMeta(ctx, localID, k, v); err != nil {
			sum.addError(&RowError{SourceID: row.ID, Stage: "meta", Err: err})
		}
	}
	for _, op := range o.MetaOps {
		var opErr error
		if op.Delete {
			opErr = e.st.DeleteEntityMeta(ctx, localID, op.Key)
		} else {
			opErr = e.st.SetEntityMeta(ctx, localID, op.Key, op.Value)
		}
		if opErr != nil {
			sum.addError(&RowError{SourceID: row.ID, Stage: "meta-op", Err: opErr})
		}
	}

	if o.AssignTerms && len(terms) > 0 {
		if err := e.AssignFetchedTerms(ctx, localID, terms, o.TaxonomyMap); err != nil {
			sum.addError(&RowError{SourceID: row.ID, Stage: "terms", Err: err})
		}
	}
	if err := e.applyTermOps(ctx, localID, o); err != nil {
		sum.addError(&RowError{SourceID: row.ID, Stage: "term-ops", Err: err})
	}

	if batch != nil {
		e.setFeaturedImage(ctx, localID, row, batch, sum)
	}

	if o.PostHook != nil {
		if err := o.PostHook(ctx, localID, row, updated, o.DryRun); err != nil {
			sum.addError(&RowError{SourceID: row.ID, Stage: "post-hook", Err: err})
		}
	}

	// identity metadata lands after the entry's own payload
	if err := e.ids.RecordLink(ctx, key, localID); err != nil {
		sum.addError(&RowError{SourceID: row.ID, Stage: "record link", Err: err})
		metrics.RowErrors.Inc()
	}
	if sum.RunID > 0 {
		if err := e.st.SetEntityMeta(ctx, localID, RunIDKey, strconv.FormatInt(sum.RunID, 10)); err != nil {
			sum.addError(&RowError{SourceID: row.ID, Stage: "run stamp", Err: err})
		}
	}

	// restore the remote modified clock so incremental filters stay stable
	if row.ModifiedAt != "" || row.ModifiedAtUTC != "" {
		if ent, ok, err := e.st.GetEntity(ctx, localID); err == nil && ok {
			ent.ModifiedAt = row.ModifiedAt
			ent.ModifiedAtUTC = row.ModifiedAtUTC
			if err := e.st.UpdateEntity(ctx, ent); err != nil {
				sum.addError(&RowError{SourceID: row.ID, Stage: "modified clock", Err: err})
			}
		}
	}

	sum.Map[row.ID] = localID
}

// buildDraft maps a fetched row into the local shape: status clamp, slug
// fallback, author remap, content rewrite, metadata copy with an _edit_last
// remap.
func (e *Engine) buildDraft(ctx context.Context, row source.Row, o Options, tenant int, rw *Rewriter, sum *RunSummary) *Draft {
	d := &Draft{Row: row, Meta: make(map[string]string, len(row.Meta)+2)}

	d.Entity.Kind = row.Kind
	d.Entity.Status = row.Status
	if !keepableStatuses[row.Status] {
		d.Entity.Status = "publish"
	}
	d.Entity.Title = row.Title
	if d.Entity.Title == "" {
		d.Entity.Title = "Untitled"
	}

	body, bodyChanged := rw.Rewrite(row.Body)
	excerpt, excerptChanged := rw.Rewrite(row.Excerpt)
	d.Entity.Body = body
	d.Entity.Excerpt = excerpt
	if bodyChanged || excerptChanged {
		sum.Attachments.Rewritten++
	}

	d.Entity.Slug = row.Slug
	if d.Entity.Slug == "" {
		d.Entity.Slug = Slugify(row.Title)
		if d.Entity.Slug == "" {
			d.Entity.Slug = strconv.FormatInt(row.ID, 10)
		}
	}
	d.Entity.CreatedAt = row.CreatedAt
	d.Entity.CreatedAtUTC = row.CreatedAtUTC

	if row.AuthorID > 0 {
		author, err := e.resolveAuthor(ctx, row.AuthorID, tenant, o.MapUsers, o.DryRun)
		if err != nil {
			sum.addError(&RowError{SourceID: row.ID, Stage: "author", Err: err})
		}
		d.Entity.AuthorID = author
	}

	var snapshot source.Value
	snapshot.Kind = source.KindMap
	for _, m := range row.Meta {
		snapshot.Map = append(snapshot.Map, source.MapEntry{Key: m.Key, Value: m.Value})

		if m.Key == "_edit_last" {
			if localUser, err := e.resolveAuthor(ctx, m.Value.Int64(), tenant, o.MapUsers, o.DryRun); err == nil && localUser > 0 {
				d.Meta[m.Key] = strconv.FormatInt(localUser, 10)
				continue
			}
		}
		d.Meta[m.Key] = m.Value.Encode()
	}
	snapshot.Map = append(snapshot.Map, source.MapEntry{
		Key: "post_type", Value: source.ScalarValue(row.Kind),
	})
	d.Meta[SourceMetaKey] = snapshot.Encode()
	return d
}

// setFeaturedImage points the entry at its resolved thumbnail, skipping
// when the current one already matches by source URL.
func (e *Engine) setFeaturedImage(ctx context.Context, localID int64, row source.Row, batch *attachmentBatch, sum *RunSummary) {
	v, ok := row.MetaValue(ThumbnailKey)
	if !ok || v.Int64() <= 0 {
		return
	}
	// the discovery step resolved the remote id to a URL already; find it
	for _, m := range sum.Attachments.Missing {
		if m.SourceID == row.ID && m.URL == "" {
			return // thumbnail lookup already failed for this row
		}
	}

	var tenantPtr *int
	if batch.tenant > 1 {
		tenantPtr = &batch.tenant
	}
	url, err := source.FetchAttachmentURL(ctx, e.remote, e.tables, tenantPtr, false, v.Int64())
	if err != nil || url == "" {
		return
	}
	res, ok := batch.localFor(url)
	if !ok {
		return
	}

	if cur, ok, _ := e.st.GetEntityMeta(ctx, localID, ThumbnailKey); ok {
		if curID, _ := strconv.ParseInt(cur, 10, 64); curID == res.localID {
			return
		}
	}
	if err := e.st.SetEntityMeta(ctx, localID, ThumbnailKey, strconv.FormatInt(res.localID, 10)); err != nil {
		sum.addError(&RowError{SourceID: row.ID, Stage: "thumbnail", Err: err})
		return
	}
	sum.Attachments.Thumbnails++
}

func draftEntity(d *Draft, id int64) store.Entity {
	return store.Entity{
		ID:           id,
		Kind:         d.Entity.Kind,
		Status:       d.Entity.Status,
		Title:        d.Entity.Title,
		Body:         d.Entity.Body,
		Excerpt:      d.Entity.Excerpt,
		Slug:         d.Entity.Slug,
		CreatedAt:    d.Entity.CreatedAt,
		CreatedAtUTC: d.Entity.CreatedAtUTC,
		ModifiedAt:   d.Row.ModifiedAt,
		ModifiedAtUTC: d.Row.ModifiedAtUTC,
		AuthorID:     d.Entity.AuthorID,
	}
}
