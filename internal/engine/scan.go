// internal/engine/scan.go
//
// Image URL extraction from rich text content.
package engine

import (
	"strings"

	"golang.org/x/net/html"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".webp": true, ".svg": true,
}

// ExtractImageURLs returns the unique image URLs referenced by the
// fragment: img src, srcset entries, and anchors pointing straight at an
// image file.  Order of first appearance is preserved.
func ExtractImageURLs(fragment string) []string {
	if fragment == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var (
		urls []string
		seen = map[string]bool{}
	)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img", "source":
				for _, a := range n.Attr {
					switch a.Key {
					case "src":
						if isImageURL(a.Val) {
							add(a.Val)
						}
					case "srcset":
						for _, u := range srcsetURLs(a.Val) {
							add(u)
						}
					}
				}
			case "a":
				for _, a := range n.Attr {
					if a.Key == "href" && isImageURL(a.Val) {
						add(a.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return urls
}

// srcsetURLs splits a srcset list into its candidate URLs, dropping the
// width/density descriptors.
func srcsetURLs(srcset string) []string {
	var out []string
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		if isImageURL(fields[0]) {
			out = append(out, fields[0])
		}
	}
	return out
}

func isImageURL(u string) bool {
	u = strings.TrimSpace(u)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "."); i >= 0 {
		return imageExts[strings.ToLower(u[i:])]
	}
	return false
}
