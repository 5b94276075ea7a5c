// internal/media/download_test.go

package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDownloadToTemp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	d := NewDownloader(2*time.Second, 5*time.Second, t.TempDir())
	tmp, ctype, err := d.DownloadToTemp(context.Background(), srv.URL+"/up/photo.jpg")
	if err != nil {
		t.Fatalf("DownloadToTemp: %v", err)
	}
	defer os.Remove(tmp)

	if ctype != "image/jpeg" {
		t.Errorf("content type: %q", ctype)
	}
	b, err := os.ReadFile(tmp)
	if err != nil || string(b) != "jpegbytes" {
		t.Fatalf("payload: %q err=%v", b, err)
	}
	if !strings.HasSuffix(tmp, ".jpg") {
		t.Errorf("extension not preserved: %q", tmp)
	}
}

func TestDownloadToTemp_Non200(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewDownloader(2*time.Second, 5*time.Second, t.TempDir())
	if _, _, err := d.DownloadToTemp(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestDownloadToTemp_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	d := NewDownloader(time.Second, 10*time.Second, t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := d.DownloadToTemp(ctx, srv.URL); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"https://old.example.org/up/2020/01/a.jpg": "a.jpg",
		"https://old.example.org/":                 "remote-file",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
