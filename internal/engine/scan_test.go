// internal/engine/scan_test.go
//
// Unit-tests for image URL extraction.

package engine

import (
	"reflect"
	"testing"
)

func TestExtractImageURLs(t *testing.T) {
	fragment := `
<p>Intro text.</p>
<img src="https://old.example.org/uploads/2024/01/a.png" alt="a">
<picture>
  <source srcset="https://old.example.org/uploads/b-480.webp 480w, https://old.example.org/uploads/b-800.webp 800w">
  <img src="https://old.example.org/uploads/b.webp">
</picture>
<a href="https://old.example.org/uploads/full.jpg"><img src="https://old.example.org/uploads/2024/01/a.png"></a>
<a href="https://old.example.org/some-page/">not an image link</a>`

	got := ExtractImageURLs(fragment)
	want := []string{
		"https://old.example.org/uploads/2024/01/a.png",
		"https://old.example.org/uploads/b-480.webp",
		"https://old.example.org/uploads/b-800.webp",
		"https://old.example.org/uploads/b.webp",
		"https://old.example.org/uploads/full.jpg",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestExtractImageURLs_QueryStringsAndCase(t *testing.T) {
	got := ExtractImageURLs(`<img src="https://x.example.org/a.PNG?w=300"><img src="https://x.example.org/doc.pdf">`)
	want := []string{"https://x.example.org/a.PNG?w=300"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractImageURLs_Empty(t *testing.T) {
	if got := ExtractImageURLs(""); got != nil {
		t.Errorf("empty fragment: got %v, want nil", got)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello World", "hello-world"},
		{"  Já Importado!  ", "já-importado"},
		{"--weird -- spacing--", "weird-spacing"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
