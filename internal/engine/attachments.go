// internal/engine/attachments.go
//
// Binary resource resolver.
//
// Context
// -------
// References arrive two ways: an explicit thumbnail id in entry metadata,
// or a URL embedded in rich text.  Both funnel into one resolution step
// keyed on the logical storage path — the upload-relative path with any
// tenant segment ("sites/<n>/") stripped — so the same physical file
// referenced from different URL spellings registers exactly once.
//
// Downloads run under a bounded errgroup; one unreachable file lands in
// the missing list and the batch keeps going.
package engine

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hacklabr/wpmigrate/internal/identity"
	"github.com/hacklabr/wpmigrate/internal/media"
	"github.com/hacklabr/wpmigrate/internal/source"
	"github.com/hacklabr/wpmigrate/internal/store"
)

// SourcePathKey stores the logical storage path on a registered resource;
// it is the dedup index.
const SourcePathKey = "_wpmigrate_source_path"

// ThumbnailKey is the entry metadata key naming its featured resource.
const ThumbnailKey = "_thumbnail_id"

const downloadParallelism = 4

// attachmentRef is one discovered reference prior to resolution.
type attachmentRef struct {
	sourceID int64 // remote resource id, 0 for URL-only discoveries
	url      string
	ownerRow int64 // source id of the referencing entry

	// remote metadata, present when the reference came from a resource row
	title    string
	mimeType string
	file     string // upload-relative storage path at the source
}

// resolvedAttachment is the outcome for one logical path.
type resolvedAttachment struct {
	localID int64
	url     string // local public URL
}

// attachmentBatch resolves references for one chunk of rows and extends
// the rewrite map with per-file pairs.
type attachmentBatch struct {
	e      *Engine
	tenant int
	runID  int64
	dryRun bool

	oldBase string

	mu       sync.Mutex
	resolved map[string]resolvedAttachment // logical path → outcome
	sum      *AttachmentSummary
}

func (e *Engine) newAttachmentBatch(tenant int, runID int64, dryRun bool, oldBase string, sum *AttachmentSummary) *attachmentBatch {
	return &attachmentBatch{
		e:        e,
		tenant:   tenant,
		runID:    runID,
		dryRun:   dryRun,
		oldBase:  strings.TrimRight(strings.TrimSpace(oldBase), "/"),
		resolved: make(map[string]resolvedAttachment),
		sum:      sum,
	}
}

// logicalPath normalizes a URL to its upload-relative path.  Tenant
// segments and protocol variants collapse to one key; URLs outside the
// legacy base fall back to their full path component.
func (b *attachmentBatch) logicalPath(rawURL string) string {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}

	bases := []string{}
	if b.oldBase != "" {
		if b.tenant > 1 {
			bases = append(bases, b.oldBase+"/sites/"+strconv.Itoa(b.tenant))
		}
		bases = append(bases, b.oldBase)
	}
	for _, base := range bases {
		for _, variant := range []string{base, protocolRelative(base)} {
			if variant == "" {
				continue
			}
			if rest, ok := strings.CutPrefix(u, variant); ok {
				return strings.TrimPrefix(rest, "/")
			}
		}
	}
	// foreign host: key on the path, still stripping a tenant segment
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	} else {
		u = strings.TrimPrefix(u, "//")
	}
	if i := strings.IndexByte(u, '/'); i >= 0 {
		u = u[i+1:]
	}
	if b.tenant > 1 {
		u = strings.ReplaceAll(u, "sites/"+strconv.Itoa(b.tenant)+"/", "")
	}
	return u
}

// logicalFor prefers the source's stored file path — already
// upload-relative — over whatever spelling the URL carries.
func (b *attachmentBatch) logicalFor(r attachmentRef) string {
	if r.file != "" {
		return strings.TrimPrefix(r.file, "/")
	}
	return b.logicalPath(r.url)
}

func protocolRelative(base string) string {
	if rest, ok := strings.CutPrefix(base, "http://"); ok {
		return "//" + rest
	}
	if rest, ok := strings.CutPrefix(base, "https://"); ok {
		return "//" + rest
	}
	return ""
}

// discover walks one chunk of rows and returns every reference: explicit
// thumbnail ids first, then URLs scanned from content.
func (b *attachmentBatch) discover(ctx context.Context, rows []source.Row, forceBase bool) []attachmentRef {
	var refs []attachmentRef
	var tenantPtr *int
	if b.tenant > 1 {
		tenantPtr = &b.tenant
	}

	for _, row := range rows {
		if v, ok := row.MetaValue(ThumbnailKey); ok {
			if id := v.Int64(); id > 0 {
				url, err := source.FetchAttachmentURL(ctx, b.e.remote, b.e.tables, tenantPtr, forceBase, id)
				if err != nil {
					b.sum.Missing = append(b.sum.Missing, MissingResource{
						SourceID: row.ID, Reason: "thumbnail lookup: " + err.Error(),
					})
				} else if url == "" {
					b.sum.Missing = append(b.sum.Missing, MissingResource{
						SourceID: row.ID, Reason: fmt.Sprintf("thumbnail %d not found at source", id),
					})
				} else {
					refs = append(refs, attachmentRef{sourceID: id, url: url, ownerRow: row.ID})
				}
			}
		}
		for _, u := range ExtractImageURLs(row.Body) {
			refs = append(refs, attachmentRef{url: u, ownerRow: row.ID})
		}
	}
	return refs
}

// resolve processes the references: each distinct logical path is looked
// up, and misses are downloaded and registered under the parallelism
// bound.  Dry-run performs lookups only.
func (b *attachmentBatch) resolve(ctx context.Context, refs []attachmentRef) {
	b.sum.Found += len(refs)

	// distinct logical paths, first reference wins
	order := make([]string, 0, len(refs))
	byPath := make(map[string]attachmentRef)
	for _, r := range refs {
		p := b.logicalFor(r)
		if p == "" {
			continue
		}
		if _, seen := byPath[p]; !seen {
			byPath[p] = r
			order = append(order, p)
		} else {
			// a second spelling of a known path still counts as reuse
			b.mu.Lock()
			b.sum.Reused++
			b.mu.Unlock()
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadParallelism)
	for _, p := range order {
		g.Go(func() error {
			b.resolveOne(ctx, p, byPath[p])
			return nil
		})
	}
	_ = g.Wait()
}

func (b *attachmentBatch) resolveOne(ctx context.Context, logical string, ref attachmentRef) {
	localID, found, err := b.e.st.FindEntityByMeta(ctx, "attachment", SourcePathKey, logical)
	if err != nil {
		b.recordMissing(ref, "lookup: "+err.Error())
		return
	}
	if !found {
		// older registrations carry only the exact URL
		localID, found, err = b.e.st.FindEntityByMeta(ctx, "attachment", store.SourceURLKey, ref.url)
		if err != nil {
			b.recordMissing(ref, "lookup: "+err.Error())
			return
		}
	}
	if found {
		b.finish(ctx, logical, ref, localID, true)
		return
	}
	if b.dryRun {
		return
	}
	if b.e.dl == nil {
		b.recordMissing(ref, "no downloader configured")
		return
	}

	tmp, ctype, err := b.e.dl.DownloadToTemp(ctx, ref.url)
	if err != nil {
		b.recordMissing(ref, err.Error())
		return
	}
	defer os.Remove(tmp)

	// remote metadata wins over what the URL and transport can tell us
	name := media.FileName(ref.url)
	if ref.file != "" {
		name = media.FileName(ref.file)
	}
	title := ref.title
	if title == "" {
		title = strings.TrimSuffix(name, pathExt(ref.url))
	}
	mime := ref.mimeType
	if mime == "" {
		mime = ctype
	}

	localID, err = b.e.st.AttachBinaryResource(ctx, store.BinaryResource{
		LocalFile: tmp,
		FileName:  name,
		MimeType:  mime,
		Title:     title,
	})
	if err != nil {
		b.recordMissing(ref, "register: "+err.Error())
		return
	}

	_ = b.e.st.SetEntityMeta(ctx, localID, store.SourceURLKey, ref.url)
	_ = b.e.st.SetEntityMeta(ctx, localID, SourcePathKey, logical)
	if b.runID > 0 {
		_ = b.e.st.SetEntityMeta(ctx, localID, RunIDKey, strconv.FormatInt(b.runID, 10))
	}
	if ref.sourceID > 0 {
		key := identity.Key{SourceID: ref.sourceID, Tenant: b.tenant, Kind: store.KindAttachment}
		if err := b.e.ids.RecordLink(ctx, key, localID); err != nil {
			b.e.log.Warnw("attachment link not recorded",
				"source_id", ref.sourceID, "local_id", localID, "err", err)
		}
	}
	b.finish(ctx, logical, ref, localID, false)
}

func (b *attachmentBatch) finish(ctx context.Context, logical string, ref attachmentRef, localID int64, reused bool) {
	url, _, err := b.e.st.ResourceURL(ctx, localID)
	if err != nil {
		b.recordMissing(ref, "resource url: "+err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved[logical] = resolvedAttachment{localID: localID, url: url}
	if reused {
		b.sum.Reused++
	} else {
		b.sum.Registered++
	}
}

func (b *attachmentBatch) recordMissing(ref attachmentRef, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sum.Missing = append(b.sum.Missing, MissingResource{
		SourceID: ref.ownerRow, URL: ref.url, Reason: reason,
	})
}

// rewritePairs returns per-file substitutions for every resolved
// reference spelling.
func (b *attachmentBatch) rewritePairs(refs []attachmentRef) []Replacement {
	b.mu.Lock()
	defer b.mu.Unlock()
	var pairs []Replacement
	seen := map[string]bool{}
	for _, r := range refs {
		if seen[r.url] {
			continue
		}
		seen[r.url] = true
		if res, ok := b.resolved[b.logicalFor(r)]; ok && res.url != "" {
			pairs = append(pairs, Replacement{Old: r.url, New: res.url})
		}
	}
	return pairs
}

// localFor returns the local resource for a remote attachment URL, when
// resolved in this batch.
func (b *attachmentBatch) localFor(url string) (resolvedAttachment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res, ok := b.resolved[b.logicalPath(url)]
	return res, ok
}

func pathExt(u string) string {
	name := media.FileName(u)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// ImportAttachments resolves remote binary resources independently of the
// entry importer: explicit ids, or every attachment at the source when no
// ids are given.
func (e *Engine) ImportAttachments(ctx context.Context, o AttachmentOptions) (*AttachmentSummary, error) {
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

	tenant := 1
	if o.Tenant != nil && *o.Tenant > 1 {
		tenant = *o.Tenant
	}

	sum := &AttachmentSummary{}
	e.ids.NewRun()
	batch := e.newAttachmentBatch(tenant, runID, o.DryRun, o.OldUploadsBaseURL, sum)

	ids := o.IncludeIDs
	if len(ids) == 0 {
		var err error
		if ids, err = e.allAttachmentIDs(ctx, o); err != nil {
			return nil, err
		}
	}

	for start := 0; start < len(ids); start += o.ChunkSize {
		end := min(start+o.ChunkSize, len(ids))
		rows, err := source.FetchAttachments(ctx, e.remote, e.tables, o.Tenant, o.ForceBase, ids[start:end])
		if err != nil {
			return sum, err
		}
		refs := make([]attachmentRef, 0, len(rows))
		for _, r := range rows {
			if r.GUID == "" {
				sum.Missing = append(sum.Missing, MissingResource{
					SourceID: r.ID, Reason: "no public url at source",
				})
				continue
			}
			refs = append(refs, attachmentRef{
				sourceID: r.ID,
				url:      r.GUID,
				title:    r.Title,
				mimeType: r.MimeType,
				file:     r.File,
			})
		}
		batch.resolve(ctx, refs)
		sum.Rewrites = append(sum.Rewrites, batch.rewritePairs(refs)...)
	}

	// base-URL substitutions close the report so operators can replay the
	// full rewrite against stored content
	sum.Rewrites = append(sum.Rewrites, BuildURLMap(o.OldUploadsBaseURL, o.NewUploadsBaseURL, tenant)...)
	return sum, nil
}

// allAttachmentIDs pages through the source's attachment partition.
func (e *Engine) allAttachmentIDs(ctx context.Context, o AttachmentOptions) ([]int64, error) {
	var ids []int64
	offset := 0
	for {
		rows, err := source.FetchPosts(ctx, e.remote, e.tables, source.Filter{
			Tenant:    o.Tenant,
			ForceBase: o.ForceBase,
			Kinds:     []string{"attachment"},
			Statuses:  []string{"inherit"},
			OrderBy:   "ID",
			Order:     "ASC",
			Limit:     o.ChunkSize,
			Offset:    offset,
		})
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		if len(rows) < o.ChunkSize {
			return ids, nil
		}
		offset += o.ChunkSize
	}
}
