// internal/media/download.go
//
// Blocking "download to temp file" primitive with bounded timeouts.
//
// Notes
// -----
// • Connect and transfer budgets are separate: an unreachable host fails
//   fast, a slow transfer gets the longer budget, and neither can stall a
//   run indefinitely.
package media

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"
)

// Downloader fetches remote files into a temp directory.
type Downloader struct {
	client  *http.Client
	tempDir string
}

// NewDownloader builds a Downloader with the given budgets.  tempDir ""
// uses the system default.
func NewDownloader(connectTimeout, downloadTimeout time.Duration, tempDir string) *Downloader {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	if downloadTimeout <= 0 {
		downloadTimeout = 30 * time.Second
	}
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Downloader{
		client: &http.Client{
			Transport: transport,
			Timeout:   downloadTimeout,
		},
		tempDir: tempDir,
	}
}

// DownloadToTemp fetches rawURL into a temp file and returns its path and
// the response content type.  The caller owns the file and removes it when
// done.
func (d *Downloader) DownloadToTemp(ctx context.Context, rawURL string) (tmpPath, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("media: build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("media: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("media: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	f, err := os.CreateTemp(d.tempDir, "wpmigrate-*"+ext(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("media: temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", "", fmt.Errorf("media: read %s: %w", rawURL, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", "", err
	}
	return f.Name(), resp.Header.Get("Content-Type"), nil
}

// FileName extracts the base file name from a URL, or "remote-file" when
// the path has none.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "remote-file"
	}
	return path.Base(u.Path)
}

func ext(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
