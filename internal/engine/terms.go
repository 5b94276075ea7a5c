// internal/engine/terms.go
//
// Hierarchical taxonomy importer.
//
// Context
// -------
// Candidate ids arrive ordered parent first, so within a run most parents
// are already in the summary map when their children show up.  Correctness
// does not lean on that order: a parent outside the current batch is
// resolved through the identity mapper, and only when that fails too is
// the term imported as a root — loudly, never silently.
//
// Slug is the dedup key within a taxonomy; name is the fallback lookup.
// Identity metadata is written after the term's own metadata so a partial
// failure never leaves a mapped term with half its payload.
package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hacklabr/wpmigrate/internal/identity"
	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
)

// ImportTerms fetches and imports taxonomy terms per the options,
// returning the per-invocation summary.  Connection and query failures
// abort; per-term failures accumulate.
func (e *Engine) ImportTerms(ctx context.Context, o TermOptions) (*TermImportSummary, error) {
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
	sum := newTermSummary(runID)
	e.ids.NewRun()

	ids, err := source.FetchTermIDs(ctx, e.remote, e.tables, o.Filter)
	if err != nil {
		return nil, err
	}
	sum.Found = len(ids)

	tenant := 1
	if o.Filter.Tenant != nil && *o.Filter.Tenant > 1 {
		tenant = *o.Filter.Tenant
	}

	for start := 0; start < len(ids); start += o.ChunkSize {
		end := min(start+o.ChunkSize, len(ids))
		rows, err := source.FetchTerms(ctx, e.remote, e.tables, o.Filter, ids[start:end])
		if err != nil {
			return sum, err
		}
		for _, row := range rows {
			e.importTerm(ctx, row, tenant, o, sum)
		}
	}
	return sum, nil
}

func (e *Engine) importTerm(ctx context.Context, row source.TermRow, tenant int, o TermOptions, sum *TermImportSummary) {
	taxonomy := row.Taxonomy
	if mapped, ok := o.TaxonomyMap[taxonomy]; ok {
		taxonomy = mapped
	}

	exists, err := e.st.TaxonomyExists(ctx, taxonomy)
	if err != nil {
		sum.addError(row.TermID, err.Error())
		return
	}
	if !exists {
		sum.addError(row.TermID, fmt.Sprintf("taxonomy %q not registered locally", taxonomy))
		return
	}

	slug := row.Slug
	if slug == "" {
		slug = Slugify(row.Name)
	}

	if o.DryRun {
		if t, ok, _ := e.st.FindTermBySlug(ctx, taxonomy, slug); ok {
			sum.Map[row.TermID] = t.ID
		}
		return
	}

	parentLocal := e.resolveTermParent(ctx, row, taxonomy, tenant, sum)

	local, found, err := e.st.FindTermBySlug(ctx, taxonomy, slug)
	if err != nil {
		sum.addError(row.TermID, err.Error())
		return
	}
	if !found {
		local, found, err = e.st.FindTermByName(ctx, taxonomy, row.Name)
		if err != nil {
			sum.addError(row.TermID, err.Error())
			return
		}
	}

	var localID int64
	if !found {
		localID, err = e.st.CreateTerm(ctx, store.Term{
			Taxonomy:    taxonomy,
			Name:        row.Name,
			Slug:        slug,
			Description: row.Description,
			ParentID:    parentLocal,
		})
		if err != nil {
			sum.addError(row.TermID, "create: "+err.Error())
			return
		}
		sum.Imported++
	} else {
		localID = local.ID
		upd := store.Term{
			ID:          localID,
			Taxonomy:    taxonomy,
			Name:        row.Name,
			Slug:        slug,
			Description: row.Description,
			ParentID:    local.ParentID,
		}
		if parentLocal > 0 {
			upd.ParentID = parentLocal
		}
		if err := e.st.UpdateTerm(ctx, upd); err != nil {
			sum.addError(row.TermID, "update: "+err.Error())
			return
		}
		sum.Updated++
	}

	for _, m := range row.Meta {
		if m.Key == store.SourceIDKey || m.Key == store.SourceTenantKey {
			continue
		}
		if err := e.st.SetTermMeta(ctx, localID, m.Key, m.Value.Encode()); err != nil {
			sum.addError(row.TermID, "meta "+m.Key+": "+err.Error())
		}
	}

	key := identity.Key{SourceID: row.TermID, Tenant: tenant, Kind: store.KindTerm}
	if err := e.ids.RecordLink(ctx, key, localID); err != nil {
		sum.addError(row.TermID, "record link: "+err.Error())
		return
	}
	if sum.RunID > 0 {
		if err := e.st.SetTermMeta(ctx, localID, RunIDKey, strconv.FormatInt(sum.RunID, 10)); err != nil {
			sum.addError(row.TermID, "run stamp: "+err.Error())
		}
	}
	sum.Map[row.TermID] = localID
}

// resolveTermParent maps the remote parent to a local id: summary map
// first, identity lookup second.  Unresolvable parents demote the term to
// a root and are reported as orphans.
func (e *Engine) resolveTermParent(ctx context.Context, row source.TermRow, taxonomy string, tenant int, sum *TermImportSummary) int64 {
	if row.ParentID <= 0 {
		return 0
	}
	if local, ok := sum.Map[row.ParentID]; ok {
		return local
	}
	key := identity.Key{SourceID: row.ParentID, Tenant: tenant, Kind: store.KindTerm}
	if local, found, err := e.ids.FindLocal(ctx, key); err == nil && found {
		return local
	}
	e.log.Warnw("term parent unresolved, importing as root",
		"taxonomy", taxonomy, "source_term", row.TermID, "source_parent", row.ParentID)
	sum.Orphans = append(sum.Orphans, row.TermID)
	sum.addError(row.TermID, fmt.Sprintf("parent %d unresolved, imported as root", row.ParentID))
	return 0
}

// AssignFetchedTerms relates an imported entry to local terms matching the
// given remote term descriptors.  Terms missing locally are created on the
// fly by slug within the mapped taxonomy; unknown taxonomies are skipped.
func (e *Engine) AssignFetchedTerms(ctx context.Context, entityID int64, terms []source.TermRow, taxonomyMap map[string]string) error {
	bySlugTax := map[string][]int64{}
	for _, t := range terms {
		taxonomy := t.Taxonomy
		if mapped, ok := taxonomyMap[taxonomy]; ok {
			taxonomy = mapped
		}
		exists, err := e.st.TaxonomyExists(ctx, taxonomy)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		slug := t.Slug
		if slug == "" {
			slug = Slugify(t.Name)
		}
		local, found, err := e.st.FindTermBySlug(ctx, taxonomy, slug)
		if err != nil {
			return err
		}
		id := local.ID
		if !found {
			id, err = e.st.CreateTerm(ctx, store.Term{Taxonomy: taxonomy, Name: t.Name, Slug: slug})
			if err != nil {
				return err
			}
		}
		bySlugTax[taxonomy] = append(bySlugTax[taxonomy], id)
	}
	for taxonomy, ids := range bySlugTax {
		if err := e.st.AssignTerms(ctx, entityID, taxonomy, dedupeIDs(ids), false); err != nil {
			return err
		}
	}
	return nil
}

// applyTermOps runs the add/set/remove operations carried in Options after
// an entry's write.  Slugs that do not resolve are created for add/set and
// ignored for remove.
func (e *Engine) applyTermOps(ctx context.Context, entityID int64, o Options) error {
	resolve := func(op TermOp, create bool) ([]int64, error) {
		var ids []int64
		for _, slug := range op.Slugs {
			t, found, err := e.st.FindTermBySlug(ctx, op.Taxonomy, slug)
			if err != nil {
				return nil, err
			}
			if found {
				ids = append(ids, t.ID)
				continue
			}
			if !create {
				continue
			}
			id, err := e.st.CreateTerm(ctx, store.Term{Taxonomy: op.Taxonomy, Name: slug, Slug: slug})
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	for _, op := range o.TermSet {
		ids, err := resolve(op, true)
		if err != nil {
			return err
		}
		if err := e.st.AssignTerms(ctx, entityID, op.Taxonomy, ids, true); err != nil {
			return err
		}
	}
	for _, op := range o.TermAdd {
		ids, err := resolve(op, true)
		if err != nil {
			return err
		}
		if err := e.st.AssignTerms(ctx, entityID, op.Taxonomy, ids, false); err != nil {
			return err
		}
	}
	for _, op := range o.TermRemove {
		ids, err := resolve(op, false)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		// only detach what is actually assigned; a remove that matches
		// nothing must not touch the relations at all
		current, err := e.st.EntityTerms(ctx, entityID, op.Taxonomy)
		if err != nil {
			return err
		}
		assigned := make(map[int64]bool, len(current))
		for _, id := range current {
			assigned[id] = true
		}
		hit := ids[:0]
		for _, id := range ids {
			if assigned[id] {
				hit = append(hit, id)
			}
		}
		if len(hit) == 0 {
			continue
		}
		if err := e.st.RemoveTerms(ctx, entityID, op.Taxonomy, hit); err != nil {
			return err
		}
	}
	return nil
}

func dedupeIDs(in []int64) []int64 {
	seen := make(map[int64]bool, len(in))
	out := in[:0]
	for _, id := range in {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
