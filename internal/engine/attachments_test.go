// internal/engine/attachments_test.go
//
// Unit-tests for binary resource resolution and deduplication.

package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hacklabr/wpmigrate/internal/media"
	"github.com/hacklabr/wpmigrate/internal/store"
)

// newMediaServer serves fake image bytes and counts hits.
func newMediaServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasSuffix(r.URL.Path, "missing.png") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newMediaEngine(t *testing.T) *Engine {
	t.Helper()
	eng, _, _ := newTestEngine(t, false)
	eng.dl = media.NewDownloader(0, 0, t.TempDir())
	return eng
}

func TestAttachmentBatch_DedupByLogicalPath(t *testing.T) {
	srv, hits := newMediaServer(t)
	eng := newMediaEngine(t)
	ctx := context.Background()

	sum := &AttachmentSummary{}
	batch := eng.newAttachmentBatch(2, 1, false, srv.URL+"/wp-content/uploads", sum)

	// same physical file, three spellings: tenant-suffixed, bare, and
	// protocol-relative
	host := strings.TrimPrefix(srv.URL, "http://")
	refs := []attachmentRef{
		{sourceID: 41, url: srv.URL + "/wp-content/uploads/sites/2/2024/01/a.png", ownerRow: 100},
		{url: srv.URL + "/wp-content/uploads/2024/01/a.png", ownerRow: 100},
		{url: "//" + host + "/wp-content/uploads/2024/01/a.png", ownerRow: 101},
	}
	batch.resolve(ctx, refs)

	if sum.Registered != 1 {
		t.Errorf("registered = %d, want exactly one download", sum.Registered)
	}
	if sum.Reused != 2 {
		t.Errorf("reused = %d, want the other spellings deduplicated", sum.Reused)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}

	pairs := batch.rewritePairs(refs)
	if len(pairs) != 3 {
		t.Fatalf("rewrite pairs = %v, want one per spelling", pairs)
	}
	for _, p := range pairs {
		if p.New != pairs[0].New {
			t.Errorf("pair %v maps elsewhere than %q", p, pairs[0].New)
		}
	}
}

func TestAttachmentBatch_ExistingResourceReused(t *testing.T) {
	srv, hits := newMediaServer(t)
	eng := newMediaEngine(t)
	mem := eng.st.(*store.Memory)
	ctx := context.Background()

	// a prior run already registered the file under its logical path
	localID, err := mem.AttachBinaryResource(ctx, store.BinaryResource{FileName: "a.png", MimeType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	_ = mem.SetEntityMeta(ctx, localID, SourcePathKey, "2024/01/a.png")

	sum := &AttachmentSummary{}
	batch := eng.newAttachmentBatch(1, 2, false, srv.URL+"/wp-content/uploads", sum)
	batch.resolve(ctx, []attachmentRef{
		{url: srv.URL + "/wp-content/uploads/2024/01/a.png", ownerRow: 7},
	})

	if sum.Reused != 1 || sum.Registered != 0 {
		t.Errorf("summary = %+v, want the existing resource reused", sum)
	}
	if hits.Load() != 0 {
		t.Error("reuse must not touch the network")
	}
	if res, ok := batch.localFor(srv.URL + "/wp-content/uploads/2024/01/a.png"); !ok || res.localID != localID {
		t.Errorf("localFor = (%+v, %v), want the registered resource", res, ok)
	}
}

func TestAttachmentBatch_MissingFileReported(t *testing.T) {
	srv, _ := newMediaServer(t)
	eng := newMediaEngine(t)
	ctx := context.Background()

	sum := &AttachmentSummary{}
	batch := eng.newAttachmentBatch(1, 0, false, srv.URL+"/wp-content/uploads", sum)
	batch.resolve(ctx, []attachmentRef{
		{url: srv.URL + "/wp-content/uploads/2024/01/missing.png", ownerRow: 55},
	})

	if len(sum.Missing) != 1 {
		t.Fatalf("missing = %v, want one entry", sum.Missing)
	}
	if sum.Missing[0].SourceID != 55 {
		t.Errorf("missing owner = %d, want the referencing row", sum.Missing[0].SourceID)
	}
	if sum.Registered != 0 {
		t.Error("a failed download must not register anything")
	}
}

func TestAttachmentBatch_DryRunNeverDownloads(t *testing.T) {
	srv, hits := newMediaServer(t)
	eng := newMediaEngine(t)
	ctx := context.Background()

	sum := &AttachmentSummary{}
	batch := eng.newAttachmentBatch(1, 0, true, srv.URL+"/wp-content/uploads", sum)
	batch.resolve(ctx, []attachmentRef{
		{url: srv.URL + "/wp-content/uploads/2024/01/a.png", ownerRow: 9},
	})

	if hits.Load() != 0 {
		t.Error("dry run must not download")
	}
	if sum.Registered != 0 {
		t.Errorf("registered = %d, want 0 in dry run", sum.Registered)
	}
}

func TestLogicalPath(t *testing.T) {
	b := &attachmentBatch{tenant: 3, oldBase: "https://old.example.org/wp-content/uploads"}

	cases := []struct{ in, want string }{
		{"https://old.example.org/wp-content/uploads/sites/3/2024/01/a.png", "2024/01/a.png"},
		{"https://old.example.org/wp-content/uploads/2024/01/a.png", "2024/01/a.png"},
		{"//old.example.org/wp-content/uploads/sites/3/2024/01/a.png", "2024/01/a.png"},
		{"https://old.example.org/wp-content/uploads/2024/01/a.png?w=300", "2024/01/a.png"},
		{"https://cdn.example.net/wp-content/uploads/sites/3/b.jpg", "wp-content/uploads/b.jpg"},
	}
	for _, c := range cases {
		if got := b.logicalPath(c.in); got != c.want {
			t.Errorf("logicalPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestImportAttachments_RemoteMetadataAndRewriteReport(t *testing.T) {
	srv, _ := newMediaServer(t)
	eng, mock, _ := newTestEngine(t, false)
	mem := eng.st.(*store.Memory)
	eng.dl = media.NewDownloader(0, 0, t.TempDir())
	ctx := context.Background()

	guid := srv.URL + "/wp-content/uploads/2024/02/capa-original.jpg"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ID, guid, post_title, post_mime_type FROM wp_posts")).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "guid", "post_title", "post_mime_type"}).
			AddRow(61, guid, "Foto de Capa", "image/jpeg"))
	mock.ExpectQuery(regexp.QuoteMeta("meta_key = '_wp_attached_file'")).
		WillReturnRows(sqlmock.NewRows([]string{"post_id", "meta_value"}).
			AddRow(61, "2024/02/capa-original.jpg"))

	sum, err := eng.ImportAttachments(ctx, AttachmentOptions{
		IncludeIDs:        []int64{61},
		OldUploadsBaseURL: srv.URL + "/wp-content/uploads",
		NewUploadsBaseURL: "https://new.example.org/uploads",
	})
	if err != nil {
		t.Fatalf("ImportAttachments: %v", err)
	}
	if sum.Registered != 1 {
		t.Fatalf("summary = %+v, want one registration", sum)
	}

	// the stored file path is the dedup key, and the remote row's title and
	// mime survive onto the registered resource
	localID, found, _ := mem.FindEntityByMeta(ctx, "attachment", SourcePathKey, "2024/02/capa-original.jpg")
	if !found {
		t.Fatal("resource not indexed by its stored file path")
	}
	ent, _, _ := mem.GetEntity(ctx, localID)
	if ent.Title != "Foto de Capa" || ent.MimeType != "image/jpeg" {
		t.Errorf("entity = (title %q, mime %q), want the remote metadata", ent.Title, ent.MimeType)
	}

	// the report carries the per-file pair plus the base-URL map
	if len(sum.Rewrites) < 2 {
		t.Fatalf("rewrites = %v, want the file pair and the base map", sum.Rewrites)
	}
	if sum.Rewrites[0].Old != guid {
		t.Errorf("first rewrite = %v, want the remote file URL", sum.Rewrites[0])
	}
	var baseMapped bool
	for _, p := range sum.Rewrites {
		if p.Old == srv.URL+"/wp-content/uploads" && p.New == "https://new.example.org/uploads" {
			baseMapped = true
		}
	}
	if !baseMapped {
		t.Errorf("rewrites = %v, missing the base-URL substitution", sum.Rewrites)
	}
	expectMet(t, mock)
}
