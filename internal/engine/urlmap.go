// internal/engine/urlmap.go
//
// Upload URL substitution map and content rewrite.
//
// Notes
// -----
// • Tenant-suffixed pairs ("…/sites/<n>") come before the bare base so the
//   longer prefix wins; the replacer honors argument order.
// • http:// and https:// bases also get a protocol-relative ("//host/…")
//   variant, since exported content mixes both forms.
package engine

import (
	"strconv"
	"strings"
)

// Replacement is one ordered old → new pair.
type Replacement struct {
	Old string
	New string
}

// BuildURLMap returns the ordered substitution pairs for rewriting
// embedded upload URLs.  Empty or identical bases produce no pairs.
func BuildURLMap(oldBase, newBase string, tenant int) []Replacement {
	oldBase = strings.TrimRight(strings.TrimSpace(oldBase), "/")
	newBase = strings.TrimRight(strings.TrimSpace(newBase), "/")
	if oldBase == "" || newBase == "" || oldBase == newBase {
		return nil
	}

	var pairs []Replacement
	add := func(old string) {
		pairs = append(pairs, Replacement{Old: old, New: newBase})
		if rest, ok := strings.CutPrefix(old, "http://"); ok {
			pairs = append(pairs, Replacement{Old: "//" + rest, New: newBase})
		} else if rest, ok := strings.CutPrefix(old, "https://"); ok {
			pairs = append(pairs, Replacement{Old: "//" + rest, New: newBase})
		}
	}

	if tenant > 1 {
		add(oldBase + "/sites/" + strconv.Itoa(tenant))
	}
	add(oldBase)
	return pairs
}

// Rewriter applies a substitution map to rich text content.
type Rewriter struct {
	rep   *strings.Replacer
	pairs []Replacement
}

// NewRewriter compiles pairs into a single-pass replacer.  Extra pairs
// (e.g. per-file mappings from the attachment resolver) may be appended
// before compiling.
func NewRewriter(pairs []Replacement) *Rewriter {
	args := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		if p.Old == "" || p.Old == p.New {
			continue
		}
		args = append(args, p.Old, p.New)
	}
	return &Rewriter{rep: strings.NewReplacer(args...), pairs: pairs}
}

// Rewrite returns content with every mapped URL substituted, and whether
// anything changed.
func (r *Rewriter) Rewrite(content string) (string, bool) {
	if content == "" || len(r.pairs) == 0 {
		return content, false
	}
	out := r.rep.Replace(content)
	return out, out != content
}
